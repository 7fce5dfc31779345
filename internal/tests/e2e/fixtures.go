// Package e2e drives the assembled client against the in-memory backend.
package e2e

import (
	"github.com/you/chefkix/domain"
	"github.com/you/chefkix/internal/tests/fakebackend"
)

// Test accounts
const (
	ChefID       = "user-chef"
	ChefLogin    = "chef@example.com"
	ChefPassword = "correct-horse"

	FriendID = "user-friend"
	TrollID  = "user-troll"
)

// SoupRecipeID is a three step recipe whose second step has a 5 second timer
const SoupRecipeID = "recipe-soup"

// SeedBackend registers the standard accounts and recipes
func SeedBackend(b *fakebackend.Server) {
	b.AddUser(domain.User{
		ID:          ChefID,
		Username:    "chef",
		Email:       ChefLogin,
		DisplayName: "Test Chef",
	}, ChefLogin, ChefPassword)

	b.AddRecipe(fakebackend.Recipe{
		ID:    SoupRecipeID,
		Title: "Tomato soup",
		Steps: []domain.RecipeStep{
			{Title: "Prep", Instruction: "Chop the tomatoes and onions"},
			{Title: "Simmer", Instruction: "Simmer for a while", TimerSeconds: 5},
			{Title: "Finish", Instruction: "Blend and serve"},
		},
	})

	b.AddRecipe(fakebackend.Recipe{
		ID:    "recipe-toast",
		Title: "Toast",
		Steps: []domain.RecipeStep{
			{Instruction: "Toast the bread", TimerSeconds: 120},
		},
	})
}
