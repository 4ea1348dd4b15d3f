package cli

import (
	"context"
	"fmt"
	"text/template"
)

var documentTmpl = template.Must(template.New("document").Parse(documentTemplate))

func (c *Cli) RunStatus(ctx context.Context) error {
	health, err := c.apiClient.Health(ctx)
	if err != nil {
		return err
	}

	c.io.Printf("Server status: %s\n", health.Status)
	if health.Version != "" {
		c.io.Printf("Server version: %s\n", health.Version)
	}
	return nil
}

func (c *Cli) RunList(ctx context.Context) error {
	docs, err := c.apiClient.ListDocuments(ctx)
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		c.io.Println("No documents found.")
		c.io.Println()
		c.io.Println("Use 'gophdocs create <title>' to create your first document.")
		return nil
	}

	c.io.Printf("Found %d document(s):\n", len(docs))
	c.io.Println()
	for i, doc := range docs {
		c.io.Printf("%d. %s\n", i+1, doc.Title)
		c.io.Printf("   ID:      %s\n", doc.ID)
		c.io.Printf("   Updated: %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
		c.io.Println()
	}
	return nil
}

func (c *Cli) RunCreate(ctx context.Context, title, content string) error {
	doc, err := c.apiClient.CreateDocument(ctx, title, content)
	if err != nil {
		return err
	}

	c.io.Printf("Document created: %s\n", doc.ID)
	return nil
}

func (c *Cli) RunGet(ctx context.Context, id string) error {
	doc, err := c.apiClient.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	if err := documentTmpl.Execute(c.io, doc); err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}
	return nil
}

func (c *Cli) RunDelete(ctx context.Context, id string) error {
	doc, err := c.apiClient.DeleteDocument(ctx, id)
	if err != nil {
		return err
	}

	c.io.Printf("Document deleted: %s (%s)\n", doc.Title, doc.ID)
	return nil
}
