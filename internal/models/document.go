package models

import "time"

// Document is one persisted document row
type Document struct {
	CreatedAt time.Time `json:"created_at"` // время создания
	UpdatedAt time.Time `json:"updated_at"` // время последнего изменения содержимого
	ID        string    `json:"id"`         // UUID
	Title     string    `json:"title"`      // название документа
	Content   string    `json:"content"`    // полный текст на момент Version
	Version   int       `json:"version"`    // количество примененных правок
}
