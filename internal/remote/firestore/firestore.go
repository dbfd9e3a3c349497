// Package firestore adapts the remote document-store port to Google Cloud
// Firestore through its REST API. Each entity is stored as one document whose
// `data` field carries the entity's full JSON state; sync treats documents as
// opaque payloads, so the whole-document last-writer-wins semantics fall out
// of the commit model for free.
package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	gfirestore "google.golang.org/api/firestore/v1"
	goption "google.golang.org/api/option"

	"pocketbook/internal/remote"
)

const pageSize = 300

type Client struct {
	svc      *gfirestore.Service
	database string // projects/{project}/databases/{database}
}

var _ remote.DocumentStore = (*Client)(nil)

// New creates a Firestore client for the given project and database.
// credentialsFile may be empty, in which case application default
// credentials apply.
func New(ctx context.Context, projectID, databaseID, credentialsFile string) (*Client, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("firestore: missing project id")
	}
	if databaseID == "" {
		databaseID = "(default)"
	}

	var opts []goption.ClientOption
	if credentialsFile != "" {
		opts = append(opts, goption.WithCredentialsFile(credentialsFile))
	}
	svc, err := gfirestore.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore service: %w", err)
	}

	return &Client{
		svc:      svc,
		database: fmt.Sprintf("projects/%s/databases/%s", projectID, databaseID),
	}, nil
}

// Commit applies the batch in a single Firestore commit, which is atomic on
// the server side.
func (c *Client) Commit(ctx context.Context, writes []remote.Write) error {
	if len(writes) == 0 {
		return nil
	}

	req := &gfirestore.CommitRequest{Writes: make([]*gfirestore.Write, 0, len(writes))}
	for _, w := range writes {
		name := c.docName(w.Collection, w.ID)
		if w.Delete {
			req.Writes = append(req.Writes, &gfirestore.Write{Delete: name})
			continue
		}
		req.Writes = append(req.Writes, &gfirestore.Write{
			Update: &gfirestore.Document{
				Name: name,
				Fields: map[string]gfirestore.Value{
					"data": {StringValue: string(w.Data)},
				},
			},
		})
	}

	if _, err := c.svc.Projects.Databases.Documents.Commit(c.database, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("firestore commit: %w", err)
	}
	return nil
}

// ListAll pages through the collection and returns every document.
func (c *Client) ListAll(ctx context.Context, collection string) ([]remote.Doc, error) {
	parent := c.database + "/documents"

	var out []remote.Doc
	pageToken := ""
	for {
		call := c.svc.Projects.Databases.Documents.List(parent, collection).
			PageSize(pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("firestore list %s: %w", collection, err)
		}

		for _, d := range resp.Documents {
			doc, err := decodeDocument(d)
			if err != nil {
				return nil, fmt.Errorf("firestore list %s: %w", collection, err)
			}
			out = append(out, doc)
		}

		if resp.NextPageToken == "" {
			return out, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *Client) docName(collection, id string) string {
	return fmt.Sprintf("%s/documents/%s/%s", c.database, collection, id)
}

func decodeDocument(d *gfirestore.Document) (remote.Doc, error) {
	id := d.Name[strings.LastIndex(d.Name, "/")+1:]
	field, ok := d.Fields["data"]
	if !ok || field.StringValue == "" {
		return remote.Doc{}, fmt.Errorf("document %s has no data field", id)
	}
	if !json.Valid([]byte(field.StringValue)) {
		return remote.Doc{}, fmt.Errorf("document %s carries invalid JSON", id)
	}
	return remote.Doc{ID: id, Data: json.RawMessage(field.StringValue)}, nil
}
