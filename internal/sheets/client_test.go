package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	logx "sheetcast/pkg/logx"
)

type fakeGoogle struct {
	files  []map[string]string
	tabs   []string
	values [][]any

	gotQuery  string
	gotRange  string
	gotRender string
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/drive/v3/files":
		f.gotQuery = r.URL.Query().Get("q")
		_ = json.NewEncoder(w).Encode(map[string]any{"files": f.files})
	case strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1/values/"):
		f.gotRange = strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1/values/")
		f.gotRender = r.URL.Query().Get("valueRenderOption")
		_ = json.NewEncoder(w).Encode(map[string]any{"majorDimension": "ROWS", "values": f.values})
	case r.URL.Path == "/v4/spreadsheets/sheet-1":
		sheets := make([]map[string]any, 0, len(f.tabs))
		for i, title := range f.tabs {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"sheetId": i, "title": title}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, cfg Config, fake *fakeGoogle) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	ss, err := sheetsapi.NewService(ctx, option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication(), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	ds, err := drive.NewService(ctx, option.WithEndpoint(srv.URL+"/drive/v3/"), option.WithoutAuthentication(), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return newClient(cfg, logx.Nop(), ss, ds)
}

func TestFetchRecords(t *testing.T) {
	t.Parallel()
	fake := &fakeGoogle{
		files: []map[string]string{{"id": "sheet-1", "name": "Bob's Roster"}},
		tabs:  []string{"Roster", "Archive"},
		values: [][]any{
			{"chat_id", "status"},
			{111, "ACTIVE"},
			{222, "PAUSED"},
		},
	}
	c := newTestClient(t, Config{SpreadsheetName: "Bob's Roster"}, fake)

	got, err := c.FetchRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "111", got[0].Get("chat_id"))
	require.Equal(t, "PAUSED", got[1].Get("status"))

	require.Contains(t, fake.gotQuery, `name = 'Bob\'s Roster'`)
	require.Contains(t, fake.gotQuery, "trashed = false")
	require.Equal(t, "'Roster'", fake.gotRange)
	require.Equal(t, "UNFORMATTED_VALUE", fake.gotRender)
}

func TestFetchRecordsNamedWorksheet(t *testing.T) {
	t.Parallel()
	fake := &fakeGoogle{
		files:  []map[string]string{{"id": "sheet-1", "name": "Roster"}},
		tabs:   []string{"Roster", "Archive"},
		values: [][]any{{"chat_id", "status"}},
	}
	c := newTestClient(t, Config{SpreadsheetName: "Roster", Worksheet: "Archive"}, fake)
	got, err := c.FetchRecords(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, "'Archive'", fake.gotRange)

	c = newTestClient(t, Config{SpreadsheetName: "Roster", Worksheet: "Missing"}, fake)
	_, err = c.FetchRecords(context.Background())
	require.ErrorIs(t, err, ErrWorksheetNotFound)
}

func TestFetchRecordsSpreadsheetNotFound(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, Config{SpreadsheetName: "Nope"}, &fakeGoogle{})
	_, err := c.FetchRecords(context.Background())
	require.ErrorIs(t, err, ErrSpreadsheetNotFound)
}

func TestNewRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	_, err := New(ctx, Config{SpreadsheetName: "Roster", CredentialsFile: filepath.Join(dir, "credentials.json")}, logx.Nop())
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o600))
	_, err = New(ctx, Config{SpreadsheetName: "Roster", CredentialsFile: bad}, logx.Nop())
	require.Error(t, err)

	_, err = New(ctx, Config{CredentialsFile: bad}, logx.Nop())
	require.Error(t, err)
}

func TestQuoting(t *testing.T) {
	t.Parallel()
	require.Equal(t, "'It''s'", quoteSheetTitle("It's"))
	require.Equal(t, `a\\b\'c`, escapeQuery(`a\b'c`))
}
