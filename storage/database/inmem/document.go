package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/document"
)

type documentRepository struct {
	db *documentTable
}

var _ document.Repository = (*documentRepository)(nil)

func NewDocumentRepository(db *DB) document.Repository {
	return &documentRepository{db: db.document}
}

func (repo *documentRepository) Query(_ context.Context, filter document.QueryFilter) ([]document.Document, error) {
	if err := filter.ValidateFields(); err != nil {
		return nil, err
	}

	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	docs := make([]document.Document, 0)
	for _, doc := range repo.db.table {
		if matches(*doc, filter) {
			docs = append(docs, copyDocument(*doc))
		}
	}
	sortDocuments(docs, filter.Ordering)
	return docs, nil
}

func (repo *documentRepository) Get(_ context.Context, resource string, id int64) (document.Document, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if doc, ok := repo.db.table[id]; ok && doc.Resource == resource {
		return copyDocument(*doc), nil
	}
	return document.Document{}, document.ErrNotFound
}

func (repo *documentRepository) Create(_ context.Context, doc document.Document) (document.Document, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.pkSeq++
	now := time.Now().UTC()
	doc.ID = repo.db.pkSeq
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc = copyDocument(doc)
	repo.db.table[doc.ID] = &doc
	return copyDocument(doc), nil
}

func (repo *documentRepository) Update(_ context.Context, doc document.Document) (document.Document, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[doc.ID]
	if !ok || orig.Resource != doc.Resource {
		return document.Document{}, document.ErrNotFound
	}
	upd := copyDocument(doc)
	upd.School = orig.School
	upd.CreatedAt = orig.CreatedAt
	upd.UpdatedAt = time.Now().UTC()
	repo.db.table[doc.ID] = &upd
	return copyDocument(upd), nil
}

func (repo *documentRepository) Delete(_ context.Context, resource string, id int64) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	doc, ok := repo.db.table[id]
	if !ok || doc.Resource != resource {
		return document.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func matches(doc document.Document, filter document.QueryFilter) bool {
	if doc.Resource != filter.Resource {
		return false
	}
	if filter.School > 0 && doc.School != filter.School {
		return false
	}
	for fld, want := range filter.Match {
		if document.Text(doc.Data[fld]) != want {
			return false
		}
	}
	return true
}

// sortDocuments orders by id when no ordering is given.
func sortDocuments(docs []document.Document, ordering []core.DBOrdering) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(fieldValue(docs[i], ord.Field), fieldValue(docs[j], ord.Field))
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return docs[i].ID < docs[j].ID
	})
}

func fieldValue(doc document.Document, field string) interface{} {
	switch field {
	case "id":
		return float64(doc.ID)
	case "school":
		return float64(doc.School)
	}
	return doc.Data[field]
}

func compare(a, b interface{}) int {
	fa, aNum := a.(float64)
	fb, bNum := b.(float64)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(document.Text(a), document.Text(b))
}

func copyDocument(doc document.Document) document.Document {
	data := make(map[string]interface{}, len(doc.Data))
	for k, v := range doc.Data {
		data[k] = v
	}
	doc.Data = data
	return doc
}
