// Package sheetstore backs the record store with a Google Spreadsheet.
// Each table lives on its own worksheet with a header row; rows are
// addressed by their key column.
package sheetstore

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/ulugbekdev/cargobot/core/logger"
	"github.com/ulugbekdev/cargobot/store"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var spreadsheetIDRe = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

var (
	partyHeader  = []interface{}{"code", "status"}
	clientHeader = []interface{}{"id", "party", "mesta", "kub", "kg", "destination", "date", "image"}
)

// Store talks to the Sheets API. Worksheet IDs are resolved once during
// Init and cached for row deletion requests.
type Store struct {
	svc           *sheets.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// New builds a sheets-backed store from a spreadsheet reference (full URL
// or bare ID) and service-account credentials JSON.
func New(ctx context.Context, spreadsheet string, credentials []byte) (*Store, error) {
	id, err := SpreadsheetID(spreadsheet)
	if err != nil {
		return nil, store.WrapErr("connect", "", err)
	}

	jwt, err := google.JWTConfigFromJSON(credentials, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, store.WrapErr("connect", "", fmt.Errorf("parse credentials: %w", err))
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, store.WrapErr("connect", "", err)
	}

	return &Store{
		svc:           svc,
		spreadsheetID: id,
		sheetIDs:      make(map[string]int64),
	}, nil
}

// SpreadsheetID extracts the document ID from a sharing URL. A value
// without slashes is assumed to already be an ID.
func SpreadsheetID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty spreadsheet reference")
	}
	if m := spreadsheetIDRe.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	if strings.Contains(ref, "/") {
		return "", fmt.Errorf("unrecognized spreadsheet URL: %s", ref)
	}
	return ref, nil
}

// Init ensures both worksheets exist with their header rows and caches the
// worksheet IDs used by deletion requests.
func (s *Store) Init(ctx context.Context) error {
	doc, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return store.WrapErr("init", "", err)
	}

	existing := make(map[string]int64, len(doc.Sheets))
	for _, sh := range doc.Sheets {
		if sh.Properties != nil {
			existing[sh.Properties.Title] = sh.Properties.SheetId
		}
	}

	for _, tbl := range []struct {
		title  string
		header []interface{}
	}{
		{store.TableParties, partyHeader},
		{store.TableClients, clientHeader},
	} {
		id, ok := existing[tbl.title]
		if !ok {
			resp, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
				Requests: []*sheets.Request{{
					AddSheet: &sheets.AddSheetRequest{
						Properties: &sheets.SheetProperties{Title: tbl.title},
					},
				}},
			}).Context(ctx).Do()
			if err != nil {
				return store.WrapErr("init", tbl.title, err)
			}
			for _, r := range resp.Replies {
				if r.AddSheet != nil && r.AddSheet.Properties != nil {
					id = r.AddSheet.Properties.SheetId
				}
			}
			logger.STORE.Info("worksheet created",
				slog.String("event", "init"),
				slog.String("backend", "sheets"),
				slog.String("table", tbl.title),
			)
		}

		s.mu.Lock()
		s.sheetIDs[tbl.title] = id
		s.mu.Unlock()

		if err := s.ensureHeader(ctx, tbl.title, tbl.header); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) ensureHeader(ctx context.Context, table string, header []interface{}) error {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, table+"!1:1").Context(ctx).Do()
	if err != nil {
		return store.WrapErr("init", table, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, table+"!A1", &sheets.ValueRange{
		Values: [][]interface{}{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return store.WrapErr("init", table, err)
}

func (s *Store) ListParties(ctx context.Context) ([]store.Party, error) {
	rows, err := s.rows(ctx, store.TableParties)
	if err != nil {
		return nil, store.WrapErr("list", store.TableParties, err)
	}
	parties := make([]store.Party, 0, len(rows))
	for _, row := range rows {
		parties = append(parties, store.Party{
			Code:   cell(row, 0),
			Status: cell(row, 1),
		})
	}
	return parties, nil
}

func (s *Store) AppendParty(ctx context.Context, p store.Party) error {
	return s.appendRow(ctx, store.TableParties, []interface{}{p.Code, p.Status})
}

func (s *Store) UpdatePartyStatus(ctx context.Context, code, status string) error {
	row, err := s.findRow(ctx, store.TableParties, 0, code)
	if err != nil {
		return store.WrapErr("update", store.TableParties, err)
	}
	// Header occupies row 1; data rows are offset by 2.
	cellRef := fmt.Sprintf("%s!B%d", store.TableParties, row+2)
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, cellRef, &sheets.ValueRange{
		Values: [][]interface{}{{status}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return store.WrapErr("update", store.TableParties, err)
}

func (s *Store) DeleteParty(ctx context.Context, code string) error {
	return s.deleteRow(ctx, store.TableParties, 0, code)
}

func (s *Store) ListClients(ctx context.Context) ([]store.Client, error) {
	rows, err := s.rows(ctx, store.TableClients)
	if err != nil {
		return nil, store.WrapErr("list", store.TableClients, err)
	}
	clients := make([]store.Client, 0, len(rows))
	for _, row := range rows {
		clients = append(clients, store.Client{
			ID:          cell(row, 0),
			Party:       cell(row, 1),
			Mesta:       cell(row, 2),
			Kub:         cell(row, 3),
			Kg:          cell(row, 4),
			Destination: cell(row, 5),
			Date:        cell(row, 6),
			Image:       cell(row, 7),
		})
	}
	return clients, nil
}

func (s *Store) AppendClient(ctx context.Context, c store.Client) error {
	return s.appendRow(ctx, store.TableClients, []interface{}{
		c.ID, c.Party, c.Mesta, c.Kub, c.Kg, c.Destination, c.Date, c.Image,
	})
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	return s.deleteRow(ctx, store.TableClients, 0, id)
}

// rows returns data rows, skipping the header.
func (s *Store) rows(ctx context.Context, table string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, table).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Values) <= 1 {
		return nil, nil
	}
	return resp.Values[1:], nil
}

func (s *Store) appendRow(ctx context.Context, table string, row []interface{}) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, table, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return store.WrapErr("append", table, err)
}

// findRow returns the zero-based data row index whose key column equals key.
func (s *Store) findRow(ctx context.Context, table string, keyCol int, key string) (int, error) {
	rows, err := s.rows(ctx, table)
	if err != nil {
		return 0, err
	}
	for i, row := range rows {
		if cell(row, keyCol) == key {
			return i, nil
		}
	}
	return 0, store.ErrNotFound
}

func (s *Store) deleteRow(ctx context.Context, table string, keyCol int, key string) error {
	row, err := s.findRow(ctx, table, keyCol, key)
	if err != nil {
		return store.WrapErr("delete", table, err)
	}

	s.mu.Lock()
	sheetID, ok := s.sheetIDs[table]
	s.mu.Unlock()
	if !ok {
		return store.WrapErr("delete", table, fmt.Errorf("worksheet id unknown, Init not run"))
	}

	// +1 skips the header row in the zero-based grid index.
	start := int64(row + 1)
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: start,
					EndIndex:   start + 1,
				},
			},
		}},
	}).Context(ctx).Do()
	return store.WrapErr("delete", table, err)
}

func cell(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	if s, ok := row[i].(string); ok {
		return s
	}
	return fmt.Sprint(row[i])
}
