// Package policy builds IAM policy documents and the action sets behind each
// access level.
package policy

import (
	"encoding/json"
	"fmt"
)

// Version is the IAM policy language version.
const Version = "2012-10-17"

// Json is a shorthand for inline objects such as Condition blocks.
type Json = map[string]any

// Document is an IAM policy document.
type Document struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is one IAM policy statement.
type Statement struct {
	Sid       string   `json:"Sid,omitempty"`
	Effect    string   `json:"Effect"`
	Principal any      `json:"Principal,omitempty"`
	Action    []string `json:"Action"`
	Resource  []string `json:"Resource,omitempty"`
	Condition Json     `json:"Condition,omitempty"`
}

// ServicePrincipal serializes to {"Service": "<name>"}.
type ServicePrincipal string

// MarshalJSON serializes to {"Service": ...} format.
func (p ServicePrincipal) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"Service": string(p)})
}

// NewDocument returns a document holding the given statements.
func NewDocument(statements ...Statement) Document {
	return Document{Version: Version, Statement: statements}
}

// Allow returns an Allow statement.
func Allow(sid string, actions, resources []string) Statement {
	return Statement{Sid: sid, Effect: "Allow", Action: actions, Resource: resources}
}

// JSON renders the document.
func (d Document) JSON() (string, error) {
	out, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal policy document: %w", err)
	}
	return string(out), nil
}

// AssumeRole returns the trust policy letting service assume a role.
func AssumeRole(service string) (string, error) {
	return NewDocument(Statement{
		Effect:    "Allow",
		Principal: ServicePrincipal(service),
		Action:    []string{"sts:AssumeRole"},
	}).JSON()
}
