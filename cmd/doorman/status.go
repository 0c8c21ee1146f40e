// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// ProbeStatus is the outcome of one health probe.
type ProbeStatus struct {
	Check   string `json:"check"`
	URL     string `json:"url"`
	Healthy bool   `json:"healthy"`
	Status  int    `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	baseURL    string
	jsonOutput bool
	timeout    time.Duration
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe a running Doorman server",
		Long: `Query the liveness and readiness endpoints of a running server. The
address defaults to the configured metrics address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.baseURL, "url", "", "observability base URL (default: http://<metrics addr>)")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 5*time.Second, "probe timeout")

	return cmd
}

// runStatus executes the status command. It fails when any probe is
// unhealthy.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	base := cfg.baseURL
	if base == "" {
		loaded, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if loaded.Metrics.Addr == "" {
			return oops.Code("CONFIG_INVALID").Errorf("metrics listener is disabled; pass --url")
		}
		base = baseURLFromAddr(loaded.Metrics.Addr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()
	hc := &http.Client{}

	statuses := []ProbeStatus{
		probe(ctx, hc, "liveness", base),
		probe(ctx, hc, "readiness", base),
	}

	if cfg.jsonOutput {
		out, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return oops.Code("STATUS_ENCODE_FAILED").Wrap(err)
		}
		cmd.Println(string(out))
	} else {
		cmd.Print(formatStatusTable(statuses))
	}

	for _, st := range statuses {
		if !st.Healthy {
			return oops.Code("SERVER_UNHEALTHY").With("check", st.Check).Errorf("%s check failed", st.Check)
		}
	}
	return nil
}

// baseURLFromAddr turns a listen address into a URL. A missing host means
// the local machine.
func baseURLFromAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func probe(ctx context.Context, hc *http.Client, check, base string) ProbeStatus {
	st := ProbeStatus{Check: check, URL: strings.TrimRight(base, "/") + "/healthz/" + check}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, st.URL, nil)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	resp, err := hc.Do(req)
	if err != nil {
		st.Error = fmt.Sprintf("failed to connect: %v", err)
		return st
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for reuse

	st.Status = resp.StatusCode
	st.Healthy = resp.StatusCode == http.StatusOK
	if !st.Healthy {
		st.Error = http.StatusText(resp.StatusCode)
	}
	return st
}

func formatStatusTable(statuses []ProbeStatus) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tHEALTHY\tSTATUS\tERROR")
	for _, st := range statuses {
		code := "-"
		if st.Status != 0 {
			code = fmt.Sprint(st.Status)
		}
		errText := st.Error
		if errText == "" {
			errText = "-"
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", st.Check, st.Healthy, code, errText)
	}
	_ = w.Flush() //nolint:errcheck // strings.Builder never fails
	return b.String()
}
