// Package sheets reads recipient rows from a Google spreadsheet using a
// service-account credential.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	logx "sheetcast/pkg/logx"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

var (
	ErrSpreadsheetNotFound = errors.New("spreadsheet not found")
	ErrWorksheetNotFound   = errors.New("worksheet not found")
)

type Config struct {
	// SpreadsheetName is the spreadsheet title as shown in Drive.
	SpreadsheetName string
	// CredentialsFile is the service-account JSON document.
	CredentialsFile string
	// Worksheet selects a tab by title; empty means the first one.
	Worksheet string
}

type Client struct {
	cfg    Config
	log    logx.Logger
	sheets *sheetsapi.Service
	drive  *drive.Service
}

// New reads the credential document and builds read-only API clients.
// No request is made until FetchRecords.
func New(ctx context.Context, cfg Config, log logx.Logger) (*Client, error) {
	cfg.SpreadsheetName = strings.TrimSpace(cfg.SpreadsheetName)
	if cfg.SpreadsheetName == "" {
		return nil, errors.New("spreadsheet name required")
	}
	raw, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, sheetsapi.SpreadsheetsReadonlyScope, drive.DriveMetadataReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", cfg.CredentialsFile, err)
	}
	opt := option.WithCredentials(creds)

	ss, err := sheetsapi.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	ds, err := drive.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}
	return newClient(cfg, log, ss, ds), nil
}

func newClient(cfg Config, log logx.Logger, ss *sheetsapi.Service, ds *drive.Service) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:    cfg,
		log:    log.With(logx.String("comp", "sheets")),
		sheets: ss,
		drive:  ds,
	}
}

// FetchRecords reads every data row of the configured worksheet.
func (c *Client) FetchRecords(ctx context.Context) ([]Record, error) {
	start := time.Now()
	id, err := c.resolveID(ctx)
	if err != nil {
		return nil, err
	}
	title, err := c.worksheetTitle(ctx, id)
	if err != nil {
		return nil, err
	}

	vr, err := c.sheets.Spreadsheets.Values.Get(id, quoteSheetTitle(title)).
		ValueRenderOption("UNFORMATTED_VALUE").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", title, err)
	}
	records, err := RecordsFromRows(vr.Values)
	if err != nil {
		return nil, fmt.Errorf("worksheet %q: %w", title, err)
	}
	c.log.Debug("records fetched",
		logx.String("spreadsheet", c.cfg.SpreadsheetName),
		logx.String("worksheet", title),
		logx.Int("records", len(records)),
		logx.Duration("took", time.Since(start)),
	)
	return records, nil
}

func (c *Client) resolveID(ctx context.Context) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(c.cfg.SpreadsheetName), spreadsheetMimeType)
	res, err := c.drive.Files.List().
		Q(q).
		Fields("files(id, name)").
		PageSize(10).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("look up spreadsheet %q: %w", c.cfg.SpreadsheetName, err)
	}
	if len(res.Files) == 0 {
		return "", fmt.Errorf("%w: %q (is it shared with the service account?)", ErrSpreadsheetNotFound, c.cfg.SpreadsheetName)
	}
	if len(res.Files) > 1 {
		c.log.Warn("several spreadsheets share this name; using the first",
			logx.String("name", c.cfg.SpreadsheetName),
			logx.Int("matches", len(res.Files)),
			logx.String("id", res.Files[0].Id),
		)
	}
	return res.Files[0].Id, nil
}

func (c *Client) worksheetTitle(ctx context.Context, id string) (string, error) {
	ss, err := c.sheets.Spreadsheets.Get(id).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read spreadsheet %q: %w", c.cfg.SpreadsheetName, err)
	}
	want := strings.TrimSpace(c.cfg.Worksheet)
	for _, sh := range ss.Sheets {
		if sh == nil || sh.Properties == nil {
			continue
		}
		if want == "" || sh.Properties.Title == want {
			return sh.Properties.Title, nil
		}
	}
	if want == "" {
		return "", fmt.Errorf("%w: spreadsheet %q has no worksheets", ErrWorksheetNotFound, c.cfg.SpreadsheetName)
	}
	return "", fmt.Errorf("%w: %q", ErrWorksheetNotFound, want)
}

// quoteSheetTitle makes a title usable as an A1 range covering the whole sheet.
func quoteSheetTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
