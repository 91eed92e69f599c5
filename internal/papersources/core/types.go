// Package core provides a client for the CORE API v3.
//
// CORE aggregates open-access research outputs from repositories and journals.
// Its search index periodically rejects execution under load, so every call
// made by this client goes through a papersources.RetryPolicy.
//
// API Documentation: https://api.core.ac.uk/docs/v3
package core

import (
	"bytes"
	"encoding/json"
)

// SearchResponse represents the response from the works search endpoint.
type SearchResponse struct {
	TotalHits int    `json:"totalHits"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	Results   []Work `json:"results"`
}

// Work represents a single CORE work.
type Work struct {
	ID            WorkID       `json:"id"`
	Title         string       `json:"title"`
	Abstract      string       `json:"abstract"`
	YearPublished *int         `json:"yearPublished"`
	Authors       []WorkAuthor `json:"authors"`
	Links         []Link       `json:"links"`
	DownloadURL   string       `json:"downloadUrl"`
	DocumentType  DocumentType `json:"documentType"`
	Publisher     string       `json:"publisher"`
	Journals      []Journal    `json:"journals"`
	CitationCount *int         `json:"citationCount"`
}

// WorkID is a CORE work identifier. CORE reports it as a number but the
// uniform record carries it as a string.
type WorkID string

// UnmarshalJSON accepts both numeric and string ids.
func (id *WorkID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = WorkID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = WorkID(n.String())
	return nil
}

// String returns the id as text.
func (id WorkID) String() string {
	return string(id)
}

// WorkAuthor is an author entry. CORE usually sends {"name": "..."} objects,
// but some records carry bare strings.
type WorkAuthor struct {
	Name string
}

// UnmarshalJSON accepts both author objects and bare strings.
func (a *WorkAuthor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) > 0 && data[0] == '{':
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		a.Name = obj.Name
	case len(data) > 0 && data[0] == '"':
		return json.Unmarshal(data, &a.Name)
	case bytes.Equal(data, []byte("null")):
		a.Name = ""
	default:
		a.Name = string(data)
	}
	return nil
}

// Link is a typed link attached to a work.
type Link struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Journal is a journal a work was published in.
type Journal struct {
	Title string `json:"title"`
}

// DocumentType is the work's type. CORE sends either a string or a list of
// strings; only the first element of a list is kept.
type DocumentType string

// UnmarshalJSON accepts a string, a list of strings, or null.
func (d *DocumentType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*d = ""
	case len(data) > 0 && data[0] == '[':
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*d = ""
		if len(list) > 0 {
			return d.UnmarshalJSON(list[0])
		}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = DocumentType(s)
	default:
		*d = ""
	}
	return nil
}
