// Package gormstore keeps the tabular store in Postgres through gorm: one
// sheet_tables row per table and one sheet_rows row per table row.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/LJTian/GovNewsHub/internal/store"
)

// SheetTable is one named table of a store key.
type SheetTable struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	StoreKey string         `gorm:"size:128;uniqueIndex:idx_store_table" json:"storeKey"`
	Name     string         `gorm:"size:128;uniqueIndex:idx_store_table" json:"name"`
	Header   datatypes.JSON `gorm:"type:jsonb" json:"header"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SheetRow is one row; Position is 1-based and the header is position 1.
type SheetRow struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	TableID  uint           `gorm:"index:idx_table_position" json:"tableId"`
	Position int            `gorm:"index:idx_table_position" json:"position"`
	Cells    datatypes.JSON `gorm:"type:jsonb" json:"cells"`

	CreatedAt time.Time `json:"createdAt"`
}

const insertBatchSize = 200

// Client opens stores backed by one Postgres database.
type Client struct {
	DB *gorm.DB
}

// New connects to dsn and migrates the schema.
func New(dsn string) (*Client, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: open: %w", classify(err))
	}
	return NewWithDB(db)
}

// NewWithDB wraps an existing gorm handle and migrates the schema.
func NewWithDB(db *gorm.DB) (*Client, error) {
	if err := db.AutoMigrate(&SheetTable{}, &SheetRow{}); err != nil {
		return nil, fmt.Errorf("gormstore: migrate: %w", classify(err))
	}
	return &Client{DB: db}, nil
}

func (c *Client) Open(ctx context.Context, key string) (store.Handle, error) {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("gormstore: %w", classify(err))
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("gormstore: ping: %w", classify(err))
	}
	return &handle{db: c.DB, key: key}, nil
}

type handle struct {
	db  *gorm.DB
	key string
}

func (h *handle) LookupTable(ctx context.Context, name string) (store.TableLookup, error) {
	var rows []SheetTable
	err := h.db.WithContext(ctx).
		Where("store_key = ? AND name = ?", h.key, name).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return store.TableLookup{}, classify(err)
	}
	if len(rows) == 0 {
		return store.TableLookup{}, nil
	}
	return store.TableLookup{Table: tableOf(rows[0]), Found: true}, nil
}

func (h *handle) CreateTable(ctx context.Context, name string, header []string) (store.Table, error) {
	var created SheetTable
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		hdr, err := encodeCells(header)
		if err != nil {
			return err
		}
		created = SheetTable{StoreKey: h.key, Name: name, Header: hdr}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		if len(header) == 0 {
			return nil
		}
		return tx.Create(&SheetRow{TableID: created.ID, Position: 1, Cells: hdr}).Error
	})
	if err != nil {
		return store.Table{}, classify(err)
	}
	return tableOf(created), nil
}

func (h *handle) ReadColumn(ctx context.Context, t store.Table, index int) ([]string, error) {
	id, err := tableID(t)
	if err != nil {
		return nil, err
	}
	var rows []SheetRow
	err = h.db.WithContext(ctx).
		Where("table_id = ?", id).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		cells, err := decodeCells(r.Cells)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d of %q: %v", store.ErrStructural, r.Position, t.Name, err)
		}
		if index < len(cells) {
			out = append(out, cells[index])
		} else {
			out = append(out, "")
		}
	}
	return out, nil
}

func (h *handle) ReadRow(ctx context.Context, t store.Table, position int) ([]string, error) {
	id, err := tableID(t)
	if err != nil {
		return nil, err
	}
	var rows []SheetRow
	err = h.db.WithContext(ctx).
		Where("table_id = ? AND position = ?", id, position).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	if len(rows) == 0 {
		return []string{}, nil
	}
	cells, err := decodeCells(rows[0].Cells)
	if err != nil {
		return nil, fmt.Errorf("%w: row %d of %q: %v", store.ErrStructural, position, t.Name, err)
	}
	if cells == nil {
		cells = []string{}
	}
	return cells, nil
}

func (h *handle) AppendRows(ctx context.Context, t store.Table, rows [][]string) error {
	id, err := tableID(t)
	if err != nil {
		return err
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		last, err := maxPosition(tx, id)
		if err != nil {
			return err
		}
		return insertRows(tx, id, last+1, rows)
	})
	return classify(err)
}

func (h *handle) InsertRowsAt(ctx context.Context, t store.Table, rows [][]string, position int) error {
	id, err := tableID(t)
	if err != nil {
		return err
	}
	if position < 1 {
		position = 1
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		last, err := maxPosition(tx, id)
		if err != nil {
			return err
		}
		if position > last+1 {
			position = last + 1
		}
		shift := tx.Model(&SheetRow{}).
			Where("table_id = ? AND position >= ?", id, position).
			Update("position", gorm.Expr("position + ?", len(rows)))
		if shift.Error != nil {
			return shift.Error
		}
		return insertRows(tx, id, position, rows)
	})
	return classify(err)
}

func maxPosition(tx *gorm.DB, tableID uint) (int, error) {
	var last int
	err := tx.Model(&SheetRow{}).
		Where("table_id = ?", tableID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&last).Error
	return last, err
}

func insertRows(tx *gorm.DB, tableID uint, start int, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	batch := make([]SheetRow, 0, len(rows))
	for i, r := range rows {
		cells, err := encodeCells(r)
		if err != nil {
			return err
		}
		batch = append(batch, SheetRow{TableID: tableID, Position: start + i, Cells: cells})
	}
	return tx.CreateInBatches(batch, insertBatchSize).Error
}

func tableOf(t SheetTable) store.Table {
	return store.Table{Name: t.Name, ID: fmt.Sprintf("%d", t.ID)}
}

func tableID(t store.Table) (uint, error) {
	var id uint
	if _, err := fmt.Sscanf(t.ID, "%d", &id); err != nil || id == 0 {
		return 0, fmt.Errorf("%w: table %q has no valid id %q", store.ErrStructural, t.Name, t.ID)
	}
	return id, nil
}

// toValidUTF8 avoids Postgres "invalid byte sequence" errors on pages with
// mixed encodings.
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func encodeCells(cells []string) (datatypes.JSON, error) {
	clean := make([]string, len(cells))
	for i, c := range cells {
		clean[i] = toValidUTF8(c)
	}
	bs, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: encode cells: %v", store.ErrStructural, err)
	}
	return datatypes.JSON(bs), nil
}

func decodeCells(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var cells []string
	if err := json.Unmarshal(raw, &cells); err != nil {
		return nil, err
	}
	return cells, nil
}

// classify maps driver errors onto the store error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrQuotaExceeded) || errors.Is(err, store.ErrTransport) || errors.Is(err, store.ErrStructural) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		// too_many_connections, configuration_limit_exceeded
		case pgErr.Code == "53300" || pgErr.Code == "53400":
			return fmt.Errorf("%w: %w", store.ErrQuotaExceeded, err)
		// connection_exception class, admin/crash shutdown, cannot_connect_now
		case strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03":
			return fmt.Errorf("%w: %w", store.ErrTransport, err)
		default:
			return fmt.Errorf("%w: %w", store.ErrStructural, err)
		}
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", store.ErrTransport, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", store.ErrTransport, err)
	}
	return fmt.Errorf("%w: %w", store.ErrStructural, err)
}
