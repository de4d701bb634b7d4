package device

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{Token: "tok-123", Secret: "sec-456"}

// newTestClient points a client at an httptest server.
func newTestClient(t *testing.T, serverURL string, creds Credentials) *Client {
	t.Helper()

	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return NewClient(Config{Host: u.Hostname(), Port: port, Timeout: 2 * time.Second}, creds)
}

func TestSignedRequestCarriesValidSignature(t *testing.T) {
	var gotToken, gotTimestamp, gotSign string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("token")
		gotTimestamp = r.Header.Get("timestamp")
		gotSign = r.Header.Get("sign")
		fmt.Fprint(w, `{"status":0,"data":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, testCreds)
	_, err := client.Datacenters(context.Background())
	require.NoError(t, err)

	assert.Equal(t, testCreds.Token, gotToken)

	ts, err := strconv.ParseInt(gotTimestamp, 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().UnixMilli(), ts, 5000)

	// The server recomputes the digest from what it received.
	src := fmt.Sprintf("timestamp=%s&token=%s&secret=%s", gotTimestamp, testCreds.Token, testCreds.Secret)
	sum := md5.Sum([]byte(src))
	assert.Equal(t, hex.EncodeToString(sum[:]), gotSign)
}

func TestTimeEndpointIsUnsigned(t *testing.T) {
	var gotPath, gotToken string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("token")
		fmt.Fprint(w, `{"status":0,"data":"2024-03-01 09:00:00"}`)
	}))
	defer srv.Close()

	// No credentials configured; the time probe must still succeed.
	client := newTestClient(t, srv.URL, Credentials{})
	env, err := client.Time(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/api/time", gotPath)
	assert.Empty(t, gotToken)
	assert.Equal(t, "2024-03-01 09:00:00", env["data"])
}

func TestSignedRequestWithoutCredentialsFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, Credentials{Token: "tok-only"})
	_, err := client.Datacenters(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestDryRunNeverTouchesTheNetwork(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	client := NewClient(Config{Host: u.Hostname(), Port: port, DryRun: true}, testCreds)
	ctx := context.Background()

	env, err := client.Datacenters(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dry-run", env["status"])
	assert.Equal(t, http.MethodGet, env["method"])
	assert.Contains(t, env["url"], "/api/datacenter/list")

	// Upload would normally read the file; in dry-run it must not.
	env, err = client.UploadTask(ctx, UploadTaskParams{
		Identifier: "job-1",
		Name:       "job-1",
		File:       failingReader{},
	})
	require.NoError(t, err)
	assert.Equal(t, "dry-run", env["status"])

	_, err = client.AssignTask(ctx, "10.0.0.5", "job-1")
	require.NoError(t, err)
	_, err = client.CancelAssign(ctx, "job-1")
	require.NoError(t, err)

	snap, err := client.CutSystemState(ctx, "10.0.0.5", "panel")
	require.NoError(t, err)
	assert.Equal(t, StateStandby, snap.SysState)

	assert.Equal(t, int64(0), hits.Load())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("file must not be read in dry-run")
}

func TestEnvelopeStatusHandling(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "status zero", body: `{"status":0,"msg":"ok"}`, wantErr: false},
		{name: "status missing", body: `{"data":{"a":1}}`, wantErr: false},
		{name: "status null", body: `{"status":null}`, wantErr: false},
		{name: "status nonzero", body: `{"status":5,"msg":"task not found"}`, wantErr: true},
		{name: "status string", body: `{"status":"ERR"}`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL, testCreds)
			_, err := client.Datacenters(context.Background())

			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			var devErr *DeviceError
			require.ErrorAs(t, err, &devErr)
		})
	}
}

func TestDeviceErrorCarriesStatusAndMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":5,"msg":"task not found"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, testCreds)
	_, err := client.Datacenters(context.Background())

	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, float64(5), devErr.Status)
	assert.Equal(t, "task not found", devErr.Msg)
	assert.Contains(t, devErr.Error(), "task not found")
}

func TestNonJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>totally not json</html>")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, testCreds)
	_, err := client.Datacenters(context.Background())
	assert.ErrorIs(t, err, ErrNonJSONResponse)
}

func TestHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, testCreds)
	_, err := client.Datacenters(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
}

func TestTransportErrorWrapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	client := newTestClient(t, srv.URL, testCreds)
	_, err := client.Datacenters(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestUploadTaskSendsMultipartForm(t *testing.T) {
	var gotFields map[string]string
	var gotFile string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotFields = map[string]string{}
		for name := range r.MultipartForm.Value {
			gotFields[name] = r.FormValue(name)
		}
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotFile = header.Filename
		fmt.Fprint(w, `{"status":0}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, testCreds)
	_, err := client.UploadTask(context.Background(), UploadTaskParams{
		Identifier:      "job-7",
		Name:            "bracket",
		Material:        "acrylic",
		Thickness:       "3mm",
		Count:           2,
		TargetMachineIP: "10.0.0.5",
		FileName:        "bracket.gcode",
		File:            strings.NewReader("G0 X0 Y0"),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"taskIdentifier":  "job-7",
		"taskName":        "bracket",
		"material":        "acrylic",
		"thickness":       "3mm",
		"count":           "2",
		"targetMachineIp": "10.0.0.5",
	}, gotFields)
	assert.Equal(t, "bracket.gcode", gotFile)
}

func TestAssignAndCancelPayloads(t *testing.T) {
	var gotPath, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = string(body)
		fmt.Fprint(w, `{"status":0}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, testCreds)
	ctx := context.Background()

	_, err := client.AssignTask(ctx, "10.0.0.5", "job-7")
	require.NoError(t, err)
	assert.Equal(t, "/api/task/assign", gotPath)
	assert.JSONEq(t, `{"machineIp":"10.0.0.5","taskIdentifier":"job-7"}`, gotBody)

	_, err = client.CancelAssign(ctx, "job-7")
	require.NoError(t, err)
	assert.Equal(t, "/api/task/cancelAssign", gotPath)
	assert.JSONEq(t, `{"taskIdentifier":"job-7"}`, gotBody)
}

func TestCutSystemStateParsesSnapshot(t *testing.T) {
	var gotQuery url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"status":0,"data":{"sysState":8,"cutPercent":42,"taskName":"bracket"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, testCreds)
	snap, err := client.CutSystemState(context.Background(), "10.0.0.5", "panel")
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", gotQuery.Get("ip"))
	assert.Equal(t, "panel", gotQuery.Get("appName"))
	assert.Equal(t, StateBusy, snap.SysState)
	assert.True(t, snap.Busy())
	assert.Equal(t, "cutting", snap.Label())
	assert.Equal(t, 42, snap.CutPercent)
	assert.Equal(t, "bracket", snap.TaskName)
}

func TestCutSystemStateClampsPercent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"data":{"sysState":8,"cutPercent":250}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, testCreds)
	snap, err := client.CutSystemState(context.Background(), "10.0.0.5", "panel")
	require.NoError(t, err)
	assert.Equal(t, 100, snap.CutPercent)
}

func TestStateLabelUnknownCode(t *testing.T) {
	assert.Equal(t, "standby", StateLabel(StateStandby))
	assert.Equal(t, "cutting", StateLabel(StateBusy))
	assert.Equal(t, "unknown_42", StateLabel(42))
}
