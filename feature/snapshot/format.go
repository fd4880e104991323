package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"timeline-cache/core/cache"
)

// FormatVersion is written into every header line.
const FormatVersion = 1

// Line kinds of the JSONL stream. A snapshot starts with a header line and
// ends with a footer line carrying the row counts.
const (
	kindHeader    = "header"
	kindUser      = "user"
	kindStatus    = "status"
	kindReference = "reference"
	kindEntry     = "entry"
	kindFooter    = "footer"
)

// Header describes a snapshot.
type Header struct {
	Version   int       `json:"version"`
	Account   string    `json:"account"`
	CreatedAt time.Time `json:"created_at"`
}

// Counts is the number of rows per table in a snapshot.
type Counts struct {
	Users      int `json:"users"`
	Statuses   int `json:"statuses"`
	References int `json:"references"`
	Entries    int `json:"entries"`
}

type line struct {
	Kind      string                   `json:"kind"`
	Header    *Header                  `json:"header,omitempty"`
	User      *cache.DbUser            `json:"user,omitempty"`
	Status    *cache.DbStatus          `json:"status,omitempty"`
	Reference *cache.DbStatusReference `json:"reference,omitempty"`
	Entry     *cache.DbPagingEntry     `json:"entry,omitempty"`
	Counts    *Counts                  `json:"counts,omitempty"`
}

type encoder struct {
	enc    *json.Encoder
	counts Counts
}

func newEncoder(w io.Writer) *encoder {
	return &encoder{enc: json.NewEncoder(w)}
}

func (e *encoder) header(h Header) error {
	return e.enc.Encode(line{Kind: kindHeader, Header: &h})
}

func (e *encoder) users(rows []cache.DbUser) error {
	for i := range rows {
		if err := e.enc.Encode(line{Kind: kindUser, User: &rows[i]}); err != nil {
			return err
		}
	}
	e.counts.Users += len(rows)
	return nil
}

func (e *encoder) statuses(rows []cache.DbStatus) error {
	for i := range rows {
		if err := e.enc.Encode(line{Kind: kindStatus, Status: &rows[i]}); err != nil {
			return err
		}
	}
	e.counts.Statuses += len(rows)
	return nil
}

func (e *encoder) references(rows []cache.DbStatusReference) error {
	for i := range rows {
		if err := e.enc.Encode(line{Kind: kindReference, Reference: &rows[i]}); err != nil {
			return err
		}
	}
	e.counts.References += len(rows)
	return nil
}

func (e *encoder) entries(rows []cache.DbPagingEntry) error {
	for i := range rows {
		if err := e.enc.Encode(line{Kind: kindEntry, Entry: &rows[i]}); err != nil {
			return err
		}
	}
	e.counts.Entries += len(rows)
	return nil
}

func (e *encoder) footer() error {
	c := e.counts
	return e.enc.Encode(line{Kind: kindFooter, Counts: &c})
}

// contents is a decoded snapshot.
type contents struct {
	Header     Header
	Users      []cache.DbUser
	Statuses   []cache.DbStatus
	References []cache.DbStatusReference
	Entries    []cache.DbPagingEntry
}

func (c *contents) counts() Counts {
	return Counts{
		Users:      len(c.Users),
		Statuses:   len(c.Statuses),
		References: len(c.References),
		Entries:    len(c.Entries),
	}
}

// decode reads a whole snapshot. A stream without header or footer, or
// whose footer disagrees with the rows read, is rejected as truncated.
func decode(r io.Reader) (*contents, error) {
	sc := bufio.NewScanner(r)
	// Status content can be large.
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var (
		out       contents
		sawHeader bool
		footer    *Counts
		n         int
	)
	for sc.Scan() {
		n++
		if len(sc.Bytes()) == 0 {
			continue
		}
		if footer != nil {
			return nil, fmt.Errorf("line %d: data after footer", n)
		}
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if !sawHeader && l.Kind != kindHeader {
			return nil, fmt.Errorf("line %d: expected header, got %q", n, l.Kind)
		}
		switch {
		case l.Kind == kindHeader && l.Header != nil && !sawHeader:
			if l.Header.Version != FormatVersion {
				return nil, fmt.Errorf("unsupported snapshot version %d", l.Header.Version)
			}
			out.Header = *l.Header
			sawHeader = true
		case l.Kind == kindUser && l.User != nil:
			out.Users = append(out.Users, *l.User)
		case l.Kind == kindStatus && l.Status != nil:
			out.Statuses = append(out.Statuses, *l.Status)
		case l.Kind == kindReference && l.Reference != nil:
			out.References = append(out.References, *l.Reference)
		case l.Kind == kindEntry && l.Entry != nil:
			out.Entries = append(out.Entries, *l.Entry)
		case l.Kind == kindFooter && l.Counts != nil:
			footer = l.Counts
		default:
			return nil, fmt.Errorf("line %d: malformed %q line", n, l.Kind)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if !sawHeader {
		return nil, fmt.Errorf("empty snapshot")
	}
	if footer == nil {
		return nil, fmt.Errorf("snapshot is truncated: no footer")
	}
	if got := out.counts(); got != *footer {
		return nil, fmt.Errorf("snapshot is truncated: footer %+v, read %+v", *footer, got)
	}
	return &out, nil
}
