// Package catalog declares the platform's tables, secrets, buckets, functions
// and routes as plain data. The stacks turn these descriptors into resources.
package catalog

import (
	"errors"
	"fmt"

	"github.com/thoughtful-python/infra/internal/models"
	"github.com/thoughtful-python/infra/pkg/config"
)

var (
	// ErrUnknownTarget is returned when a route or binding names something the catalog does not declare.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrDuplicate is returned when an identifier, name or route key is declared twice.
	ErrDuplicate = errors.New("duplicate declaration")
)

// Catalog is the full set of descriptors for one deployment.
type Catalog struct {
	Tables    []models.TableSpec
	Buckets   []models.BucketSpec
	Secrets   []models.SecretSpec
	Functions []models.FunctionSpec
	Routes    []models.RouteSpec
}

// New builds the catalog for cfg.
func New(cfg *config.Config) *Catalog {
	return &Catalog{
		Tables:    Tables(cfg),
		Buckets:   Buckets(cfg),
		Secrets:   Secrets(cfg),
		Functions: Functions(cfg),
		Routes:    Routes(),
	}
}

// Table looks up a table by id.
func (c *Catalog) Table(id models.TableID) (models.TableSpec, bool) {
	for _, t := range c.Tables {
		if t.ID == id {
			return t, true
		}
	}
	return models.TableSpec{}, false
}

// Secret looks up a secret by id.
func (c *Catalog) Secret(id models.SecretID) (models.SecretSpec, bool) {
	for _, s := range c.Secrets {
		if s.ID == id {
			return s, true
		}
	}
	return models.SecretSpec{}, false
}

// Function looks up a function by id.
func (c *Catalog) Function(id models.FunctionID) (models.FunctionSpec, bool) {
	for _, f := range c.Functions {
		if f.ID == id {
			return f, true
		}
	}
	return models.FunctionSpec{}, false
}

// Validate checks that every identifier is unique, every binding and route
// points at a declared resource, and no path and method pair repeats.
func (c *Catalog) Validate() error {
	tables := make(map[models.TableID]bool)
	tableNames := make(map[string]bool)
	for _, t := range c.Tables {
		if err := t.Validate(); err != nil {
			return err
		}
		if tables[t.ID] || tableNames[t.Name] {
			return fmt.Errorf("table %q: %w", t.ID, ErrDuplicate)
		}
		tables[t.ID] = true
		tableNames[t.Name] = true
	}

	buckets := make(map[models.BucketID]bool)
	for _, b := range c.Buckets {
		if b.Name == "" {
			return fmt.Errorf("bucket %q: name is required", b.ID)
		}
		if buckets[b.ID] {
			return fmt.Errorf("bucket %q: %w", b.ID, ErrDuplicate)
		}
		buckets[b.ID] = true
	}

	secrets := make(map[models.SecretID]bool)
	for _, s := range c.Secrets {
		if s.Name == "" {
			return fmt.Errorf("secret %q: name is required", s.ID)
		}
		if secrets[s.ID] {
			return fmt.Errorf("secret %q: %w", s.ID, ErrDuplicate)
		}
		secrets[s.ID] = true
	}

	functions := make(map[models.FunctionID]bool)
	for _, f := range c.Functions {
		if err := validateFunction(f, tables, buckets, secrets); err != nil {
			return err
		}
		if functions[f.ID] {
			return fmt.Errorf("function %q: %w", f.ID, ErrDuplicate)
		}
		functions[f.ID] = true
	}

	return ValidateRoutes(c.Routes, func(id models.FunctionID) bool { return functions[id] })
}

// ValidateRoutes checks that every route targets a declared function
// and that no route key is declared twice.
func ValidateRoutes(routes []models.RouteSpec, declared func(models.FunctionID) bool) error {
	keys := make(map[string]string)
	for _, r := range routes {
		if !declared(r.Function) {
			return fmt.Errorf("route %s targets function %q: %w", r.Path, r.Function, ErrUnknownTarget)
		}
		if len(r.Methods) == 0 {
			return fmt.Errorf("route %s declares no methods", r.Path)
		}
		for _, key := range r.RouteKeys() {
			if prev, ok := keys[key]; ok {
				return fmt.Errorf("route key %q declared by %s and %s: %w", key, prev, r.ID, ErrDuplicate)
			}
			keys[key] = r.ID
		}
	}
	return nil
}

func validateFunction(f models.FunctionSpec, tables map[models.TableID]bool, buckets map[models.BucketID]bool, secrets map[models.SecretID]bool) error {
	if f.NameSuffix == "" || len(f.Command) == 0 {
		return fmt.Errorf("function %q: name suffix and command are required", f.ID)
	}

	envVars := make(map[string]bool)
	claim := func(name string) error {
		if envVars[name] {
			return fmt.Errorf("function %q: environment variable %s: %w", f.ID, name, ErrDuplicate)
		}
		envVars[name] = true
		return nil
	}
	for name := range f.Environment {
		envVars[name] = true
	}

	for _, b := range f.Tables {
		if !tables[b.Table] {
			return fmt.Errorf("function %q binds table %q: %w", f.ID, b.Table, ErrUnknownTarget)
		}
		if !b.Access.IsValid() {
			return fmt.Errorf("function %q binds table %q with invalid access %q", f.ID, b.Table, b.Access)
		}
		if err := claim(b.EnvVar); err != nil {
			return err
		}
	}
	for _, b := range f.Buckets {
		if !buckets[b.Bucket] {
			return fmt.Errorf("function %q binds bucket %q: %w", f.ID, b.Bucket, ErrUnknownTarget)
		}
		if !b.Access.IsValid() {
			return fmt.Errorf("function %q binds bucket %q with invalid access %q", f.ID, b.Bucket, b.Access)
		}
		if err := claim(b.EnvVar); err != nil {
			return err
		}
	}
	for _, b := range f.Secrets {
		if !secrets[b.Secret] {
			return fmt.Errorf("function %q binds secret %q: %w", f.ID, b.Secret, ErrUnknownTarget)
		}
		if err := claim(b.EnvVar); err != nil {
			return err
		}
	}
	return nil
}
