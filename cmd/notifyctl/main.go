package main

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wagmicrew/TFX-APP-sub001/internal/authz"
	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "hash-key":
		err = runHashKey(args)
	case "dispatch":
		err = runDispatch(args)
	case "kick":
		err = runKick(args)
	case "register-session":
		err = runRegisterSession(args)
	case "records":
		err = runRecords(args)
	case "sync-status":
		err = runSyncStatus(args)
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  hash-key          Generate an admin key and its argon2id hash")
	fmt.Fprintln(os.Stderr, "  dispatch          Send a push notification through the admin API")
	fmt.Fprintln(os.Stderr, "  kick              Force-terminate a session")
	fmt.Fprintln(os.Stderr, "  register-session  Register a device session")
	fmt.Fprintln(os.Stderr, "  records           List recent push dispatch records")
	fmt.Fprintln(os.Stderr, "  sync-status       Show a session's sync queue status")
	os.Exit(2)
}

func runHashKey(args []string) error {
	fs := flag.NewFlagSet("hash-key", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	key := fs.String("key", "", "admin key to hash (generated if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	k := strings.TrimSpace(*key)
	if k == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		k = base64.RawURLEncoding.EncodeToString(buf)
	}

	hash, err := authz.HashAPIKey(k)
	if err != nil {
		return err
	}

	return printJSON(struct {
		Key  string `json:"key"`
		Hash string `json:"hash"`
	}{k, hash})
}

type adminOpts struct {
	baseURL  string
	adminKey string
}

func adminFlags(fs *flag.FlagSet) *adminOpts {
	var o adminOpts
	fs.StringVar(&o.baseURL, "base-url", getenv("NOTIFYCTL_BASE_URL", "http://localhost:8086"), "notification service base URL")
	fs.StringVar(&o.adminKey, "admin-key", os.Getenv("NOTIFYCTL_ADMIN_KEY"), "admin API key")
	return &o
}

func (o *adminOpts) validate() error {
	if strings.TrimSpace(o.adminKey) == "" {
		return fmt.Errorf("admin key is required (flag -admin-key or NOTIFYCTL_ADMIN_KEY)")
	}
	return nil
}

func runDispatch(args []string) error {
	fs := flag.NewFlagSet("dispatch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o := adminFlags(fs)
	title := fs.String("title", "", "notification title")
	body := fs.String("body", "", "notification body")
	target := fs.String("target", "all", "target type: all, user, device or platform")
	targetID := fs.String("target-id", "", "user id or push token, depending on target")
	platform := fs.String("platform", "", "ios or android, for -target platform")
	notifType := fs.String("type", "", "notification type (defaults to admin_broadcast)")
	data := fs.String("data", "", "extra JSON payload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := o.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(*title) == "" || strings.TrimSpace(*body) == "" {
		return fmt.Errorf("title and body are required")
	}

	req := dto.DispatchRequest{
		Title:            *title,
		Body:             *body,
		TargetType:       *target,
		TargetID:         *targetID,
		TargetPlatform:   *platform,
		NotificationType: *notifType,
	}
	if strings.TrimSpace(*data) != "" {
		if !json.Valid([]byte(*data)) {
			return fmt.Errorf("-data must be valid JSON")
		}
		req.Data = json.RawMessage(*data)
	}

	return o.call(http.MethodPost, "/v1/admin/notifications/dispatch", req)
}

func runKick(args []string) error {
	fs := flag.NewFlagSet("kick", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o := adminFlags(fs)
	session := fs.String("session", "", "session UUID")
	reason := fs.String("reason", "", "message shown to the user")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := o.validate(); err != nil {
		return err
	}
	id, err := uuid.Parse(strings.TrimSpace(*session))
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	return o.call(http.MethodPost, "/v1/admin/sessions/"+id.String()+"/kick", dto.KickRequest{Reason: *reason})
}

func runRegisterSession(args []string) error {
	fs := flag.NewFlagSet("register-session", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o := adminFlags(fs)
	user := fs.String("user", "", "user UUID")
	device := fs.String("device", "", "device identifier")
	platform := fs.String("platform", "", "ios or android")
	pushToken := fs.String("push-token", "", "push token (optional)")
	session := fs.String("session", "", "session UUID (optional; generated if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := o.validate(); err != nil {
		return err
	}

	req := dto.RegisterSessionRequest{
		SessionID: strings.TrimSpace(*session),
		UserID:    strings.TrimSpace(*user),
		DeviceID:  strings.TrimSpace(*device),
		Platform:  strings.TrimSpace(*platform),
		PushToken: strings.TrimSpace(*pushToken),
	}
	return o.call(http.MethodPost, "/v1/admin/sessions", req)
}

func runRecords(args []string) error {
	fs := flag.NewFlagSet("records", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o := adminFlags(fs)
	limit := fs.Int("limit", 20, "maximum records to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := o.validate(); err != nil {
		return err
	}

	return o.call(http.MethodGet, "/v1/admin/push-records?limit="+url.QueryEscape(fmt.Sprint(*limit)), nil)
}

func runSyncStatus(args []string) error {
	fs := flag.NewFlagSet("sync-status", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o := adminFlags(fs)
	session := fs.String("session", "", "session UUID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := o.validate(); err != nil {
		return err
	}
	id, err := uuid.Parse(strings.TrimSpace(*session))
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	return o.call(http.MethodGet, "/v1/admin/sync/"+id.String()+"/status", nil)
}

// call issues one admin API request and prints the data payload.
func (o *adminOpts) call(method, path string, payload any) error {
	var rdr io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(body)
	}

	endpoint := strings.TrimRight(o.baseURL, "/") + path
	req, err := http.NewRequest(method, endpoint, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("X-Admin-Key", o.adminKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to close response body: %v\n", cerr)
		}
	}()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	if !env.Success {
		if env.Error != nil {
			return fmt.Errorf("request failed (%s): %s", env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("request failed: %s", resp.Status)
	}

	var pretty any
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &pretty); err != nil {
			return err
		}
	} else {
		pretty = map[string]bool{"success": true}
	}
	return printJSON(pretty)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
