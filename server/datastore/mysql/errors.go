package mysql

import (
	"fmt"

	"github.com/VividCortex/mysqlerr"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// notFoundError is returned when a datastore resource cannot be matched.
type notFoundError struct {
	ID           uint
	Name         string
	Message      string
	ResourceType string
}

func notFound(kind string) *notFoundError {
	return &notFoundError{
		ResourceType: kind,
	}
}

func (e *notFoundError) WithID(id uint) *notFoundError {
	e.ID = id
	return e
}

func (e *notFoundError) WithName(name string) *notFoundError {
	e.Name = name
	return e
}

func (e *notFoundError) Error() string {
	msg := e.ResourceType
	if e.ID != 0 {
		msg += fmt.Sprintf(" %d", e.ID)
	}
	if e.Name != "" {
		msg += fmt.Sprintf(" (%s)", e.Name)
	}
	if e.Message != "" {
		msg += fmt.Sprintf(" %s", e.Message)
	}
	msg += " was not found in the datastore"
	return msg
}

func (e *notFoundError) IsNotFound() bool {
	return true
}

type existsError struct {
	Identifier   interface{}
	ResourceType string
}

func alreadyExists(kind string, identifier interface{}) error {
	return &existsError{
		Identifier:   identifier,
		ResourceType: kind,
	}
}

func (e *existsError) Error() string {
	return fmt.Sprintf("%s %v already exists", e.ResourceType, e.Identifier)
}

func (e *existsError) IsExists() bool {
	return true
}

func isDuplicate(err error) bool {
	err = errors.Cause(err)
	if driverErr, ok := err.(*mysql.MySQLError); ok {
		if driverErr.Number == mysqlerr.ER_DUP_ENTRY {
			return true
		}
	}
	return false
}
