// Package sheetstore implements the tabular store on a Google Sheets
// spreadsheet: the store key is the spreadsheet id and every table is a tab.
package sheetstore

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/LJTian/GovNewsHub/internal/store"
)

const (
	newSheetRows = 100
	newSheetCols = 20

	cellFields = "userEnteredValue"
	maxSheetID = 1<<31 - 2
)

// quota errors do not always come back as 429; the message is checked too
var rateLimitPattern = regexp.MustCompile(`(?i)(RATE_LIMIT_EXCEEDED|ReadRequestsPerMinutePerUser|WriteRequestsPerMinutePerUser|quota.*per minute)`)

// Client opens spreadsheets through the Sheets v4 API.
type Client struct {
	svc *sheets.Service
}

// New builds a client. credentialsFile is a service account JSON key; when
// empty the default application credentials are used.
func New(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*Client, error) {
	all := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if credentialsFile != "" {
		all = append(all, option.WithCredentialsFile(credentialsFile))
	}
	all = append(all, opts...)

	svc, err := sheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("sheetstore: new service: %w", err)
	}
	return &Client{svc: svc}, nil
}

func (c *Client) Open(ctx context.Context, key string) (store.Handle, error) {
	ss, err := c.svc.Spreadsheets.Get(key).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	return &handle{svc: c.svc, id: ss.SpreadsheetId}, nil
}

type handle struct {
	svc *sheets.Service
	id  string
}

func (h *handle) LookupTable(ctx context.Context, name string) (store.TableLookup, error) {
	ss, err := h.svc.Spreadsheets.Get(h.id).Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return store.TableLookup{}, classify(err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == name {
			return store.TableLookup{Table: tableOf(s.Properties), Found: true}, nil
		}
	}
	return store.TableLookup{}, nil
}

// CreateTable adds the tab and writes header in one batchUpdate. Requests
// inside a batchUpdate are applied all or nothing, so a rejected call never
// leaves a tab without its header.
func (h *handle) CreateTable(ctx context.Context, name string, header []string) (store.Table, error) {
	ss, err := h.svc.Spreadsheets.Get(h.id).Fields("sheets.properties(sheetId,title)").Context(ctx).Do()
	if err != nil {
		return store.Table{}, classify(err)
	}
	taken := make(map[int64]bool, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			taken[s.Properties.SheetId] = true
		}
	}
	sheetID := sheetIDFor(name)
	for taken[sheetID] {
		sheetID = sheetID%maxSheetID + 1
	}

	reqs := []*sheets.Request{{
		AddSheet: &sheets.AddSheetRequest{
			Properties: &sheets.SheetProperties{
				SheetId: sheetID,
				Title:   name,
				GridProperties: &sheets.GridProperties{
					RowCount:    newSheetRows,
					ColumnCount: newSheetCols,
				},
			},
		},
	}}
	if len(header) > 0 {
		reqs = append(reqs, &sheets.Request{UpdateCells: updateCells(sheetID, 0, [][]string{header})})
	}
	resp, err := h.batch(ctx, reqs)
	if err != nil {
		return store.Table{}, err
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return store.Table{}, fmt.Errorf("%w: add sheet %q returned no properties", store.ErrStructural, name)
	}
	return tableOf(resp.Replies[0].AddSheet.Properties), nil
}

func (h *handle) ReadColumn(ctx context.Context, t store.Table, index int) ([]string, error) {
	col := columnLetter(index)
	rng := fmt.Sprintf("%s!%s:%s", quoteTitle(t.Name), col, col)
	return h.readLine(ctx, rng, "COLUMNS")
}

func (h *handle) ReadRow(ctx context.Context, t store.Table, position int) ([]string, error) {
	if position < 1 {
		position = 1
	}
	rng := fmt.Sprintf("%s!%d:%d", quoteTitle(t.Name), position, position)
	return h.readLine(ctx, rng, "ROWS")
}

func (h *handle) readLine(ctx context.Context, rng, dimension string) ([]string, error) {
	vr, err := h.svc.Spreadsheets.Values.Get(h.id, rng).MajorDimension(dimension).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	if len(vr.Values) == 0 {
		return []string{}, nil
	}
	out := make([]string, 0, len(vr.Values[0]))
	for _, v := range vr.Values[0] {
		out = append(out, fmt.Sprint(v))
	}
	return out, nil
}

func (h *handle) AppendRows(ctx context.Context, t store.Table, rows [][]string) error {
	sheetID, err := sheetIDOf(t)
	if err != nil {
		return err
	}
	_, err = h.batch(ctx, []*sheets.Request{{
		AppendCells: &sheets.AppendCellsRequest{
			SheetId:         sheetID,
			Rows:            rowData(rows),
			Fields:          cellFields,
			ForceSendFields: []string{"SheetId"},
		},
	}})
	return err
}

// InsertRowsAt opens len(rows) blank rows and fills them in the same
// batchUpdate, so a retried call cannot leave blank rows behind.
func (h *handle) InsertRowsAt(ctx context.Context, t store.Table, rows [][]string, position int) error {
	sheetID, err := sheetIDOf(t)
	if err != nil {
		return err
	}
	if position < 1 {
		position = 1
	}
	start := int64(position - 1)

	_, err = h.batch(ctx, []*sheets.Request{
		{
			InsertDimension: &sheets.InsertDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      start,
					EndIndex:        start + int64(len(rows)),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
				InheritFromBefore: position > 1,
			},
		},
		{UpdateCells: updateCells(sheetID, start, rows)},
	})
	return err
}

func (h *handle) batch(ctx context.Context, reqs []*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	resp, err := h.svc.Spreadsheets.BatchUpdate(h.id, &sheets.BatchUpdateSpreadsheetRequest{Requests: reqs}).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	return resp, nil
}

func updateCells(sheetID, rowIndex int64, rows [][]string) *sheets.UpdateCellsRequest {
	return &sheets.UpdateCellsRequest{
		Start: &sheets.GridCoordinate{
			SheetId:         sheetID,
			RowIndex:        rowIndex,
			ForceSendFields: []string{"SheetId", "RowIndex", "ColumnIndex"},
		},
		Rows:   rowData(rows),
		Fields: cellFields,
	}
}

// rowData writes every cell as a plain string so dates keep their
// DD/MM/YYYY text.
func rowData(rows [][]string) []*sheets.RowData {
	out := make([]*sheets.RowData, 0, len(rows))
	for _, r := range rows {
		cells := make([]*sheets.CellData, len(r))
		for i := range r {
			v := r[i]
			cells[i] = &sheets.CellData{UserEnteredValue: &sheets.ExtendedValue{StringValue: &v}}
		}
		out = append(out, &sheets.RowData{Values: cells})
	}
	return out
}

func tableOf(p *sheets.SheetProperties) store.Table {
	return store.Table{Name: p.Title, ID: strconv.FormatInt(p.SheetId, 10)}
}

func sheetIDOf(t store.Table) (int64, error) {
	id, err := strconv.ParseInt(t.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: sheet %q has no numeric id %q", store.ErrStructural, t.Name, t.ID)
	}
	return id, nil
}

// sheetIDFor derives a stable positive id from the tab name; 0 is left to
// the spreadsheet's default tab.
func sheetIDFor(name string) int64 {
	f := fnv.New32a()
	f.Write([]byte(name))
	return int64(f.Sum32())%maxSheetID + 1
}

// quoteTitle quotes a tab title for A1 notation.
func quoteTitle(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// columnLetter converts a 0-based index to A1 column letters.
func columnLetter(index int) string {
	if index < 0 {
		index = 0
	}
	var b []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// classify maps API errors onto the store error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		if gErr.Code == http.StatusTooManyRequests || rateLimitPattern.MatchString(gErr.Error()) {
			return fmt.Errorf("%w: %w", store.ErrQuotaExceeded, err)
		}
		for _, item := range gErr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return fmt.Errorf("%w: %w", store.ErrQuotaExceeded, err)
			}
		}
		if gErr.Code >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", store.ErrTransport, err)
		}
		return fmt.Errorf("%w: %w", store.ErrStructural, err)
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", store.ErrTransport, err)
	}
	return fmt.Errorf("%w: %w", store.ErrStructural, err)
}
