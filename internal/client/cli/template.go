package cli

const documentTemplate = `
=== Document ===

Title:   {{.Title}}
ID:      {{.ID}}
Version: {{.Version}}
Created: {{.CreatedAt.Format "2006-01-02 15:04:05"}}
Updated: {{.UpdatedAt.Format "2006-01-02 15:04:05"}}

Content:
---
{{.Content}}
---
`
