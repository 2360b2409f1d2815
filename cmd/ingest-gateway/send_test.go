package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"ingest-gateway/ingest"
)

func TestSendCommand_PostsFileToGateway(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(newTestApp(c, testConfig()))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "msg.json")
	c.Assert(os.WriteFile(path, []byte(newCompanyBody), 0o600), qt.IsNil)

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{
		"send",
		"--url", srv.URL + ingest.PathMessages,
		"--file", path,
		"--correlation-id", "cli-1",
	})

	c.Assert(root.ExecuteContext(context.Background()), qt.IsNil)
	c.Assert(out.String(), qt.Contains, "200 OK")
	c.Assert(out.String(), qt.Contains, ingest.CorrelationHeader+": cli-1")
	c.Assert(out.String(), qt.Contains, `"success":true`)
}
