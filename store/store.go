// Package store defines the record model and the pluggable backend
// interface for shipment parties and cargo clients.
package store

import (
	"context"
	"errors"
	"fmt"
)

// StatusNew is assigned to freshly registered parties.
const StatusNew = "New"

// Table names shared by every backend.
const (
	TableParties = "parties"
	TableClients = "clients"
)

// ErrNotFound reports that the keyed record does not exist in the backend.
var ErrNotFound = errors.New("record not found")

// Party is a shipment batch identified by its code.
type Party struct {
	Code   string `json:"code" db:"code"`
	Status string `json:"status" db:"status"`
}

// Client is a cargo record. Numeric-looking fields stay strings on purpose:
// operators enter free text and the bot never computes with them.
type Client struct {
	ID          string `json:"id" db:"id"`
	Party       string `json:"party" db:"party"`
	Mesta       string `json:"mesta" db:"mesta"`
	Kub         string `json:"kub" db:"kub"`
	Kg          string `json:"kg" db:"kg"`
	Destination string `json:"destination" db:"destination"`
	Date        string `json:"date" db:"date"`
	Image       string `json:"image" db:"image"`
}

// Store is the backend contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// Init prepares the backend: creates tables, worksheets or files
	// together with their headers when absent.
	Init(ctx context.Context) error

	ListParties(ctx context.Context) ([]Party, error)
	AppendParty(ctx context.Context, p Party) error
	// UpdatePartyStatus rewrites the status of the party with the given
	// code. Missing codes return ErrNotFound.
	UpdatePartyStatus(ctx context.Context, code, status string) error
	DeleteParty(ctx context.Context, code string) error

	ListClients(ctx context.Context) ([]Client, error)
	AppendClient(ctx context.Context, c Client) error
	DeleteClient(ctx context.Context, id string) error
}

// Error wraps a backend failure with the operation and table it hit.
type Error struct {
	Op    string
	Table string
	Err   error
}

func (e *Error) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("store: %s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code implements the error-code hook picked up by handler summary logs.
func (e *Error) Code() string { return "STORE_" + e.Op }

// WrapErr builds a *Error unless err is nil.
func WrapErr(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Table: table, Err: err}
}
