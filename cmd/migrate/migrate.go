package main

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const downMarker = "-- +migrate Down"

type migrator struct {
	db     *sqlx.DB
	dir    string
	logger *zap.Logger
}

func (m *migrator) ensureTable() error {
	_, err := m.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`)
	return err
}

func (m *migrator) apply() error {
	files, err := filepath.Glob(filepath.Join(m.dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		filename := filepath.Base(file)
		var exists bool
		if err := m.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
			return fmt.Errorf("read migration state: %w", err)
		}
		if exists {
			continue
		}
		up, _, err := readSections(file)
		if err != nil {
			return err
		}
		err = m.inTx(func(tx *sqlx.Tx) error {
			if err := execStatements(tx, up); err != nil {
				return err
			}
			_, err := tx.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, filename)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply %s: %w", filename, err)
		}
		m.logger.Info("applied migration", zap.String("file", filename))
	}
	return nil
}

func (m *migrator) rollback() error {
	var filename string
	err := m.db.Get(&filename, `SELECT filename FROM schema_migrations ORDER BY applied_at DESC, filename DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		m.logger.Info("nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read migration state: %w", err)
	}
	_, down, err := readSections(filepath.Join(m.dir, filename))
	if err != nil {
		return err
	}
	err = m.inTx(func(tx *sqlx.Tx) error {
		if err := execStatements(tx, down); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM schema_migrations WHERE filename = $1`, filename)
		return err
	})
	if err != nil {
		return fmt.Errorf("roll back %s: %w", filename, err)
	}
	m.logger.Info("rolled back migration", zap.String("file", filename))
	return nil
}

func (m *migrator) inTx(fn func(*sqlx.Tx) error) error {
	tx, err := m.db.Beginx()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// readSections splits a migration file into its up and down halves.
func readSections(path string) (string, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	up, down, _ := strings.Cut(string(content), downMarker)
	return up, down, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func execStatements(db execer, sqlText string) error {
	for _, stmt := range splitSQL(sqlText) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
