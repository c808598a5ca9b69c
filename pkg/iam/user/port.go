package user

import (
	"context"

	"github.com/Abraxas-365/gatekit/pkg/kernel"
)

// Repository define el contrato para la persistencia de usuarios
type Repository interface {
	// FindByID busca un usuario por ID
	FindByID(ctx context.Context, id kernel.UserID) (*User, error)

	// FindByEmail busca un usuario por email
	FindByEmail(ctx context.Context, email string) (*User, error)

	// Save inserta un nuevo usuario
	Save(ctx context.Context, u User) error
}
