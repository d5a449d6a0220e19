package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `annotask hands out records for human review in per-user batches.

Loop for one annotator (always pass the same user_id):
1) next_record: returns status "record" with the record to review, "needs_batch", or "limit_reached".
2) On "needs_batch" call assign_batch. An empty assigned list means nothing is available right now.
3) submit_annotation with is_correct=true, or is_correct=false plus edited_translation (legacy records)
   or edited_conversations (conversation records). The edit must differ from the original.
4) Stop when next_record or submit_annotation reports limit_reached.

Rejections come back as a status code, not a tool error:
QUOTA_EXCEEDED, NOT_IN_BATCH, EMPTY_CORRECTION, INVALID_CORRECTION, ALREADY_ANNOTATED.

Docs: annotask://docs/workflow
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "annotask://docs/workflow",
		Name:        "docs_workflow",
		Title:       "Annotation workflow",
		Description: "Batches, leases and quota rules an annotator runs into.",
		Content: `# Annotation workflow

## Quota

Every user may annotate at most ` + "`batch_size`" + ` records in total. Resubmitting a record you
already annotated replaces your verdict and does not use quota, but is rejected once the
limit is reached.

## Batches

A batch is a fixed, ordered list of records picked for one user. A new batch is only handed
out when the previous one is finished. Records annotated by anyone, and records leased by
another user, are never offered.

## Leases

Assigning a batch leases its records for the lock timeout (300 seconds by default). After
the lease expires another user may be given the record. If they annotate it first, it is
skipped in your batch and ` + "`submit_annotation`" + ` returns ALREADY_ANNOTATED.

## Corrections

- Legacy records: send ` + "`edited_translation`" + `.
- Conversation records: send the full ` + "`edited_conversations`" + ` list; no turn may be empty.

An edit identical to the original (ignoring surrounding whitespace) is EMPTY_CORRECTION.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
