package device

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

// Fixed endpoints exposed by the device firmware. The paths, field names
// and header scheme are the vendor's contract and cannot change here.

// Time queries the device clock. The firmware serves it unauthenticated,
// so it doubles as a reachability probe beyond the raw TCP check.
func (c *Client) Time(ctx context.Context) (Envelope, error) {
	return c.send(ctx, requestSpec{method: http.MethodGet, path: "/api/time"})
}

// Datacenters lists the machines known to the device hub.
func (c *Client) Datacenters(ctx context.Context) (Envelope, error) {
	return c.send(ctx, requestSpec{method: http.MethodGet, path: "/api/datacenter/list", signed: true})
}

// CutSystemState polls the machine state driving the job lifecycle tracker.
func (c *Client) CutSystemState(ctx context.Context, machineIP, appName string) (*Snapshot, error) {
	if c.dryRun {
		return &Snapshot{SysState: StateStandby}, nil
	}

	query := url.Values{}
	query.Set("ip", machineIP)
	query.Set("appName", appName)

	env, err := c.send(ctx, requestSpec{
		method: http.MethodGet,
		path:   "/api/monitor/cutSystemState",
		query:  query,
		signed: true,
	})
	if err != nil {
		return nil, err
	}
	return parseSnapshot(env)
}

type UploadTaskParams struct {
	Identifier      string
	Name            string
	Material        string
	Thickness       string
	Count           int
	TargetMachineIP string
	FileName        string
	File            io.Reader
}

// UploadTask pushes a cutting file to the device as a multipart form.
func (c *Client) UploadTask(ctx context.Context, p UploadTaskParams) (Envelope, error) {
	if c.dryRun {
		// Skip building the form entirely; nothing leaves the process.
		return c.send(ctx, requestSpec{method: http.MethodPost, path: "/api/task/upload"})
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	fields := map[string]string{
		"taskIdentifier": p.Identifier,
		"taskName":       p.Name,
		"material":       p.Material,
		"thickness":      p.Thickness,
		"count":          strconv.Itoa(p.Count),
	}
	if p.TargetMachineIP != "" {
		fields["targetMachineIp"] = p.TargetMachineIP
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	part, err := form.CreateFormFile("file", p.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, p.File); err != nil {
		return nil, fmt.Errorf("failed to read upload file: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	return c.send(ctx, requestSpec{
		method:      http.MethodPost,
		path:        "/api/task/upload",
		body:        &buf,
		contentType: form.FormDataContentType(),
		signed:      true,
	})
}

// AssignTask binds an uploaded task to a machine.
func (c *Client) AssignTask(ctx context.Context, machineIP, taskIdentifier string) (Envelope, error) {
	return c.postJSON(ctx, "/api/task/assign", map[string]string{
		"machineIp":      machineIP,
		"taskIdentifier": taskIdentifier,
	})
}

// CancelAssign releases a previously assigned task.
func (c *Client) CancelAssign(ctx context.Context, taskIdentifier string) (Envelope, error) {
	return c.postJSON(ctx, "/api/task/cancelAssign", map[string]string{
		"taskIdentifier": taskIdentifier,
	})
}

// OpenFile asks the machine to open an uploaded task file.
func (c *Client) OpenFile(ctx context.Context, id, machineIP string) (Envelope, error) {
	query := url.Values{}
	query.Set("id", id)
	query.Set("ip", machineIP)
	return c.send(ctx, requestSpec{
		method: http.MethodGet,
		path:   "/api/task/openFile",
		query:  query,
		signed: true,
	})
}
