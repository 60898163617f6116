// Package secrets writes values into the platform's Secrets Manager secrets.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

var (
	// ErrSecretNotFound is returned when the secret has not been deployed yet.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrSecretDeleted is returned when the secret is scheduled for deletion.
	ErrSecretDeleted = errors.New("secret is scheduled for deletion")
	// ErrEmptyValue is returned when asked to store an empty value.
	ErrEmptyValue = errors.New("secret value is empty")
)

// Client is the subset of the Secrets Manager API the manager uses.
type Client interface {
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
}

// Manager stores secret values
type Manager struct {
	client Client
	logger *slog.Logger
}

// NewManager creates a manager backed by Secrets Manager
func NewManager(cfg aws.Config, logger *slog.Logger) *Manager {
	return NewManagerWithClient(secretsmanager.NewFromConfig(cfg), logger)
}

// NewManagerWithClient creates a manager over an existing client
func NewManagerWithClient(client Client, logger *slog.Logger) *Manager {
	return &Manager{
		client: client,
		logger: logger,
	}
}

// PutValue stores value as the current version of the named secret and
// returns the new version id. The secret must already exist; the platform
// declares it, this only sets its value.
func (m *Manager) PutValue(ctx context.Context, name, value string) (string, error) {
	value = strings.TrimRight(value, "\r\n")
	if value == "" {
		return "", ErrEmptyValue
	}

	described, err := m.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%s: %w", name, ErrSecretNotFound)
		}
		return "", fmt.Errorf("failed to describe secret %s: %w", name, err)
	}
	if described.DeletedDate != nil {
		return "", fmt.Errorf("%s: %w", name, ErrSecretDeleted)
	}

	// SECURITY: Never log the value
	result, err := m.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     described.ARN,
		SecretString: aws.String(value),
	})
	if err != nil {
		m.logger.Error("failed to store secret value",
			slog.String("secret_name", name),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("failed to store secret value: %w", err)
	}

	versionID := aws.ToString(result.VersionId)
	m.logger.Info("secret value stored",
		slog.String("secret_name", name),
		slog.String("version_id", versionID),
	)
	return versionID, nil
}
