// Package client is a Go client for the receipts search HTTP API.
//
//	c, _ := client.New("http://search:8080", client.WithIdentity("user-1", ""))
//	resp, err := c.Search(ctx, client.NewSearch("starbucks").
//	    Between(from, to).
//	    AmountAtLeast(20).
//	    Limit(10).
//	    Request())
//
// Errors returned by Search wrap *APIError; match them with errors.Is against
// ErrInvalidQuery, ErrUnauthorized, ErrEmbeddingUnavailable or ErrPipelineFailed.
package client
