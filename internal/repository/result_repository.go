package repository

import "github.com/anime-shed/heatmap-inspector/internal/storage"

var (
	_ ResultRepository = (*storage.XLSXResultStore)(nil)
	_ ResultRepository = (*storage.SQLiteResultStore)(nil)
)
