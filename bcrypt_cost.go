//go:build !race

package accounts

// production hashing cost
const hashCost = 12

func passwordHashCost() int { return hashCost }
