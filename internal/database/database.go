package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"monitor-shopify/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// ErrNotFound é retornado quando o registro procurado não existe
var ErrNotFound = errors.New("registro não encontrado")

// StoreError indica falha de leitura ou escrita no banco
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("erro no banco (%s): %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// DB encapsula a conexão com o banco de dados
type DB struct {
	conn *sql.DB
}

// New cria uma nova instância do banco de dados
func New(dbPath string, logger zerolog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite3", "file:"+dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, storeErr("open", err)
	}
	// o sqlite aceita um único escritor por vez
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}

	if err := db.init(); err != nil {
		conn.Close()
		return nil, storeErr("init", err)
	}

	logger.Info().Str("path", dbPath).Msg("Banco de dados inicializado com sucesso")
	return db, nil
}

// Close fecha a conexão com o banco de dados
func (db *DB) Close() error {
	return db.conn.Close()
}

// init cria as tabelas necessárias
func (db *DB) init() error {
	createTablesSQL := `
	CREATE TABLE IF NOT EXISTS monitors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		query TEXT NOT NULL DEFAULT '',
		destination INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS variants (
		monitor_id INTEGER NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
		product_id INTEGER NOT NULL,
		variant_id INTEGER NOT NULL,
		available INTEGER NOT NULL,
		price TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (monitor_id, product_id, variant_id)
	);
	`

	_, err := db.conn.Exec(createTablesSQL)
	return err
}

// AddMonitor cadastra um novo monitor e retorna o ID atribuído
func (db *DB) AddMonitor(ctx context.Context, m models.Monitor) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO monitors (url, kind, query, destination) VALUES (?, ?, ?, ?)",
		m.URL, string(m.Kind), m.Query, m.Destination,
	)
	if err != nil {
		return 0, storeErr("add monitor", err)
	}
	id, err := res.LastInsertId()
	return id, storeErr("add monitor", err)
}

// ListMonitors retorna todos os monitores em ordem de cadastro
func (db *DB) ListMonitors(ctx context.Context) ([]models.Monitor, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT id, url, kind, query, destination, created_at FROM monitors ORDER BY id")
	if err != nil {
		return nil, storeErr("list monitors", err)
	}
	return scanMonitors(rows)
}

// ListMonitorsByDestination retorna os monitores de um chat
func (db *DB) ListMonitorsByDestination(ctx context.Context, destination int64) ([]models.Monitor, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, url, kind, query, destination, created_at FROM monitors WHERE destination = ? ORDER BY id",
		destination,
	)
	if err != nil {
		return nil, storeErr("list monitors", err)
	}
	return scanMonitors(rows)
}

// GetMonitor retorna um monitor pelo ID
func (db *DB) GetMonitor(ctx context.Context, id int64) (*models.Monitor, error) {
	var m models.Monitor
	var kind string
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, url, kind, query, destination, created_at FROM monitors WHERE id = ?",
		id,
	).Scan(&m.ID, &m.URL, &kind, &m.Query, &m.Destination, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get monitor", err)
	}
	m.Kind = models.Kind(kind)
	return &m, nil
}

// RemoveMonitor remove um monitor e todas as variantes registradas para ele
func (db *DB) RemoveMonitor(ctx context.Context, id int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("remove monitor", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM variants WHERE monitor_id = ?", id); err != nil {
		return storeErr("remove monitor", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM monitors WHERE id = ?", id)
	if err != nil {
		return storeErr("remove monitor", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return storeErr("remove monitor", err)
	} else if n == 0 {
		return ErrNotFound
	}

	return storeErr("remove monitor", tx.Commit())
}

// FindVariant busca o último estado salvo de uma variante.
// Retorna nil sem erro quando a variante ainda não foi vista por esse monitor.
func (db *DB) FindVariant(ctx context.Context, monitorID, productID, variantID int64) (*models.VariantRecord, error) {
	r := models.VariantRecord{MonitorID: monitorID, ProductID: productID, VariantID: variantID}
	var available int
	err := db.conn.QueryRowContext(ctx,
		"SELECT available, price, created_at, updated_at FROM variants WHERE monitor_id = ? AND product_id = ? AND variant_id = ?",
		monitorID, productID, variantID,
	).Scan(&available, &r.Price, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find variant", err)
	}
	r.Available = models.Availability(available)
	return &r, nil
}

// InsertVariant grava a primeira observação de uma variante
func (db *DB) InsertVariant(ctx context.Context, r models.VariantRecord) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO variants (monitor_id, product_id, variant_id, available, price, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.MonitorID, r.ProductID, r.VariantID, int(r.Available), r.Price.String(), r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	)
	return storeErr("insert variant", err)
}

// UpdateVariant atualiza disponibilidade, preço e updated_at de uma variante já registrada
func (db *DB) UpdateVariant(ctx context.Context, r models.VariantRecord) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE variants SET available = ?, price = ?, updated_at = ? WHERE monitor_id = ? AND product_id = ? AND variant_id = ?",
		int(r.Available), r.Price.String(), r.UpdatedAt.UTC(), r.MonitorID, r.ProductID, r.VariantID,
	)
	if err != nil {
		return storeErr("update variant", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("update variant", err)
	}
	if n == 0 {
		return storeErr("update variant", ErrNotFound)
	}
	return nil
}

// CountVariants retorna quantas variantes já foram registradas para um monitor
func (db *DB) CountVariants(ctx context.Context, monitorID int64) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM variants WHERE monitor_id = ?", monitorID).Scan(&count)
	return count, storeErr("count variants", err)
}

func scanMonitors(rows *sql.Rows) ([]models.Monitor, error) {
	defer rows.Close()

	var monitors []models.Monitor
	for rows.Next() {
		var m models.Monitor
		var kind string
		if err := rows.Scan(&m.ID, &m.URL, &kind, &m.Query, &m.Destination, &m.CreatedAt); err != nil {
			return nil, storeErr("scan monitor", err)
		}
		m.Kind = models.Kind(kind)
		monitors = append(monitors, m)
	}
	return monitors, storeErr("scan monitor", rows.Err())
}
