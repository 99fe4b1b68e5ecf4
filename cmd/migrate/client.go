package main

import (
	"errors"

	"github.com/entityvault/migrator/pkg/entityservice"
)

// newEntityServiceClient constructs the entityservice.Client this CLI talks
// to. The entity service's wire protocol is out of scope for this module
// (pkg/entityservice defines only the collaborator interface the rest of
// the migration engine is built against); wiring a concrete HTTP client in
// here is the integration point a deployment adds on top of this package.
func newEntityServiceClient() (entityservice.Client, error) {
	return nil, errors.New("no entityservice.Client wired: this build only defines the collaborator interface, see pkg/entityservice")
}
