package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/gachaupg/shuletrack/core/document"
)

const documentColumns = "id, resource, school, data, created_at, updated_at"

type (
	documentRepository struct {
		db *sqlx.DB
	}

	documentRow struct {
		ID        int64          `db:"id"`
		Resource  string         `db:"resource"`
		School    int            `db:"school"`
		Data      types.JSONText `db:"data"`
		CreatedAt time.Time      `db:"created_at"`
		UpdatedAt time.Time      `db:"updated_at"`
	}
)

var _ document.Repository = (*documentRepository)(nil)

// NewDocumentRepository stores documents in the "documents" table (see fs/migrations).
func NewDocumentRepository(db *sqlx.DB) document.Repository {
	return &documentRepository{db: db}
}

func (row documentRow) unmarshal() (document.Document, error) {
	doc := document.Document{
		ID:        row.ID,
		Resource:  row.Resource,
		School:    row.School,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if err := row.Data.Unmarshal(&doc.Data); err != nil {
		return document.Document{}, errors.Wrapf(err, "decoding document %d", row.ID)
	}
	if doc.Data == nil {
		doc.Data = make(map[string]interface{})
	}
	return doc, nil
}

func marshalData(data map[string]interface{}) (types.JSONText, error) {
	if data == nil {
		data = make(map[string]interface{})
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "encoding document data")
	}
	return types.JSONText(raw), nil
}

// trapNoRowsErr maps psql "no rows" err to document.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return document.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *documentRepository) Query(ctx context.Context, filter document.QueryFilter) ([]document.Document, error) {
	if err := filter.ValidateFields(); err != nil {
		return nil, err
	}

	conds := []string{"resource = ?"}
	args := []interface{}{filter.Resource}
	if filter.School > 0 {
		conds = append(conds, "school = ?")
		args = append(args, filter.School)
	}
	for fld, val := range filter.Match {
		conds = append(conds, "data->>'"+fld+"' = ?")
		args = append(args, val)
	}

	orderList := make([]string, 0, len(filter.Ordering)+1)
	for _, ord := range filter.Ordering {
		col := ord.Field
		switch col {
		case "id", "school", "created_at", "updated_at":
		default:
			col = "data->'" + col + "'"
		}
		ord.Field = col
		orderList = append(orderList, ord.String())
	}
	orderList = append(orderList, "id ASC")

	q := "SELECT " + documentColumns + " FROM documents WHERE " + strings.Join(conds, " AND ") +
		" ORDER BY " + strings.Join(orderList, ", ")

	var rows []documentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying documents")
	}

	docs := make([]document.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.unmarshal()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (repo *documentRepository) Get(ctx context.Context, resource string, id int64) (document.Document, error) {
	q := repo.db.Rebind("SELECT " + documentColumns + " FROM documents WHERE id = ? AND resource = ?")

	var row documentRow
	if err := repo.db.GetContext(ctx, &row, q, id, resource); err != nil {
		return document.Document{}, trapNoRowsErr(err, "finding document by ID")
	}
	return row.unmarshal()
}

func (repo *documentRepository) Create(ctx context.Context, doc document.Document) (document.Document, error) {
	data, err := marshalData(doc.Data)
	if err != nil {
		return document.Document{}, err
	}
	q := repo.db.Rebind("INSERT INTO documents (resource, school, data) VALUES (?, ?, ?) RETURNING " + documentColumns)

	var row documentRow
	if err := repo.db.GetContext(ctx, &row, q, doc.Resource, doc.School, data); err != nil {
		return document.Document{}, errors.Wrap(err, "inserting document")
	}
	return row.unmarshal()
}

func (repo *documentRepository) Update(ctx context.Context, doc document.Document) (document.Document, error) {
	data, err := marshalData(doc.Data)
	if err != nil {
		return document.Document{}, err
	}
	q := repo.db.Rebind("UPDATE documents SET data = ?, updated_at = now() WHERE id = ? AND resource = ? RETURNING " + documentColumns)

	var row documentRow
	if err := repo.db.GetContext(ctx, &row, q, data, doc.ID, doc.Resource); err != nil {
		return document.Document{}, trapNoRowsErr(err, "updating document")
	}
	return row.unmarshal()
}

func (repo *documentRepository) Delete(ctx context.Context, resource string, id int64) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM documents WHERE id = ? AND resource = ?"), id, resource)
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	if n == 0 {
		return document.ErrNotFound
	}
	return nil
}
