package inmemdb

import (
	"sync"

	"github.com/gachaupg/shuletrack/core/document"
)

type (
	DB struct {
		document *documentTable
	}

	documentTable struct {
		mutex sync.RWMutex
		pkSeq int64
		table map[int64]*document.Document
	}
)

func Open() *DB {
	return &DB{
		document: &documentTable{table: make(map[int64]*document.Document)},
	}
}
