//go:build race

package accounts

import "golang.org/x/crypto/bcrypt"

// race builds hash with the library default so the suite stays fast
func passwordHashCost() int { return bcrypt.DefaultCost }
