package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/adapters/telemetry"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/service"
)

const schema = `datasource db {\n  provider = \"sqlite\"\n  url = \"file:dev.db\"\n}\nmodel User {\n  id Int @id\n}\n`

func newServer(t *testing.T) (*Server, *telemetry.PrometheusTelemetry) {
	t.Helper()
	cfg := database.Config{URL: "file:" + filepath.Join(t.TempDir(), "dev.db"), LockTimeout: time.Second}
	connector, err := service.NewConnector(flavour.SQLite, cfg)
	require.NoError(t, err)
	require.NoError(t, connector.Connect(context.Background()))
	t.Cleanup(func() { connector.Disconnect(context.Background()) })

	tel := telemetry.NewPrometheusTelemetry(&telemetry.Config{})
	svc := service.NewMigrationService(connector, service.Config{
		Database:  cfg,
		FS:        afero.NewMemMapFs(),
		Telemetry: tel,
	})
	return NewServer(svc, tel), tel
}

func decode(t *testing.T, resp *Response) map[string]any {
	t.Helper()
	require.NotNil(t, resp)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHandleResult(t *testing.T) {
	server, _ := newServer(t)
	ctx := context.Background()

	resp := server.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"listMigrationDirectories","params":{"migrationsDirectoryPath":"/migrations"}}`))
	out := decode(t, resp)
	assert.Equal(t, "2.0", out["jsonrpc"])
	assert.Equal(t, float64(1), out["id"])
	assert.Equal(t, map[string]any{"migrations": []any{}}, out["result"])
	assert.NotContains(t, out, "error")

	resp = server.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":"v","method":"getDatabaseVersion"}`))
	out = decode(t, resp)
	assert.Equal(t, "v", out["id"])
	assert.NotEmpty(t, out["result"])
}

func TestHandleCreateMigration(t *testing.T) {
	server, _ := newServer(t)
	req := `{"jsonrpc":"2.0","id":2,"method":"createMigration","params":{"migrationsDirectoryPath":"/migrations","prismaSchema":"` + schema + `","migrationName":"init","draft":false}}`

	out := decode(t, server.Handle(context.Background(), []byte(req)))
	result, ok := out["result"].(map[string]any)
	require.True(t, ok, "unexpected response %v", out)
	name, _ := result["generatedMigrationName"].(string)
	assert.True(t, strings.HasSuffix(name, "_init"))
}

func TestHandleKnownError(t *testing.T) {
	server, _ := newServer(t)
	req := `{"jsonrpc":"2.0","id":3,"method":"markMigrationRolledBack","params":{"migrationName":"missing"}}`

	out := decode(t, server.Handle(context.Background(), []byte(req)))
	rpcErr, ok := out["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(EngineErrorCode), rpcErr["code"])
	data := rpcErr["data"].(map[string]any)
	assert.Equal(t, false, data["is_panic"])
	assert.Equal(t, "P3012", data["error_code"])
	assert.Contains(t, data["message"], "missing")
}

func TestHandlePanic(t *testing.T) {
	server, tel := newServer(t)
	ctx := context.Background()

	out := decode(t, server.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":4,"method":"debugPanic"}`)))
	rpcErr := out["error"].(map[string]any)
	assert.Equal(t, float64(EngineErrorCode), rpcErr["code"])
	data := rpcErr["data"].(map[string]any)
	assert.Equal(t, true, data["is_panic"])
	assert.Equal(t, "This is the debugPanic artificial panic", data["message"])
	assert.NotContains(t, data, "error_code")

	// The server keeps serving after a panic.
	out = decode(t, server.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":5,"method":"ensureConnectionValidity","params":{}}`)))
	assert.Equal(t, map[string]any{}, out["result"])

	count, err := testutil.GatherAndCount(tel.Registry(), "prisma_migrate_commands_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHandleProtocolErrors(t *testing.T) {
	server, _ := newServer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		request string
		code    int
	}{
		{name: "parse error", request: `{"jsonrpc":`, code: ParseError},
		{name: "wrong version", request: `{"jsonrpc":"1.0","id":1,"method":"reset"}`, code: InvalidRequest},
		{name: "unknown method", request: `{"jsonrpc":"2.0","id":1,"method":"nope"}`, code: MethodNotFound},
		{name: "invalid params", request: `{"jsonrpc":"2.0","id":1,"method":"schemaPush","params":{"force":"yes"}}`, code: InvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := server.Handle(ctx, []byte(tt.request))
			require.NotNil(t, resp)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Nil(t, resp.Result)
		})
	}
}

func TestHandleNotification(t *testing.T) {
	server, _ := newServer(t)
	assert.Nil(t, server.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","method":"ensureConnectionValidity"}`)))
}

func TestServe(t *testing.T) {
	server, _ := newServer(t)
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"ensureConnectionValidity","params":{}}`,
		``,
		`{"jsonrpc":"2.0","method":"ensureConnectionValidity"}`,
		`{"jsonrpc":"2.0","id":2,"method":"nope"}`,
	}, "\n")

	var output bytes.Buffer
	require.NoError(t, server.Serve(context.Background(), strings.NewReader(input), &output))

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{}}`, lines[0])
	assert.Contains(t, lines[1], `"code":-32601`)
}
