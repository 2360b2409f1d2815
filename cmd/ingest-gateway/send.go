package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"ingest-gateway/ingest"
	"ingest-gateway/middleware/apikey"
)

const (
	urlFlag           = "url"
	fileFlag          = "file"
	apiKeyFlag        = "api-key"
	correlationIDFlag = "correlation-id"
)

var sendFlags = map[string]cobraflags.Flag{
	urlFlag: &cobraflags.StringFlag{
		Name:  urlFlag,
		Value: "http://localhost:8080" + ingest.PathMessages,
		Usage: "Messages endpoint of a running gateway",
	},
	fileFlag: &cobraflags.StringFlag{
		Name:  fileFlag,
		Value: "-",
		Usage: "JSON message to send (- reads stdin)",
	},
	apiKeyFlag: &cobraflags.StringFlag{
		Name:  apiKeyFlag,
		Value: "",
		Usage: "Value for the " + apikey.DefaultHeader + " header",
	},
	correlationIDFlag: &cobraflags.StringFlag{
		Name:  correlationIDFlag,
		Value: "",
		Usage: "Value for the " + ingest.CorrelationHeader + " header (generated by the server when empty)",
	},
}

func newSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Post a JSON message to a running gateway and print the answer",
		Long: `Post a JSON message to a running gateway and print the answer.

Examples:
  ingest-gateway send --file new-company.json --api-key s3cret
  echo '{"messageType":"DeleteDevices","serialNumbers":[]}' | ingest-gateway send`,
		RunE: sendCommand,
	}
	cobraflags.RegisterMap(cmd, sendFlags)
	return cmd
}

func sendCommand(cmd *cobra.Command, _ []string) error {
	var (
		body []byte
		err  error
	)
	if path := sendFlags[fileFlag].GetString(); path == "-" || path == "" {
		body, err = io.ReadAll(cmd.InOrStdin())
	} else {
		body, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}

	status, header, respBody, err := postMessage(cmd, body)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d %s\n", status, http.StatusText(status))
	if id := header.Get(ingest.CorrelationHeader); id != "" {
		fmt.Fprintf(out, "%s: %s\n", ingest.CorrelationHeader, id)
	}
	fmt.Fprintln(out, strings.TrimSpace(string(respBody)))

	if status != http.StatusOK {
		return fmt.Errorf("message not accepted (status %d)", status)
	}
	return nil
}

func postMessage(cmd *cobra.Command, body []byte) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, sendFlags[urlFlag].GetString(), bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key := sendFlags[apiKeyFlag].GetString(); key != "" {
		req.Header.Set(apikey.DefaultHeader, key)
	}
	if id := sendFlags[correlationIDFlag].GetString(); id != "" {
		req.Header.Set(ingest.CorrelationHeader, id)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, resp.Header, respBody, nil
}
