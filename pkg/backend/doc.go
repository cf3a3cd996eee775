// Package backend persists and verifies the remote-state backend for an
// estate.
//
// Two artifacts live side by side under backend/ in the estate repository:
// the backend file the IaC tool consumes (backend/<alias>.tfbackend) and the
// manifest describing it (backend/persistence.yaml). The pair is written
// together or not at all, an existing backend is replaced only under an
// explicit force flag, and neither file ever contains a secret.
package backend
