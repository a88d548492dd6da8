package domain

// StapleDefinition describes one grocery staple tracked for price history.
type StapleDefinition struct {
	Label      string `json:"label"`
	SearchTerm string `json:"term"`
	Category   string `json:"category"`
	Unit       string `json:"unit"`
}

// Staples is the fixed, ordered basket ingested on every run.
var Staples = []StapleDefinition{
	{Label: "Whole milk", SearchTerm: "whole milk", Category: "Dairy", Unit: "1 gal"},
	{Label: "Eggs", SearchTerm: "eggs", Category: "Dairy", Unit: "12 ct"},
	{Label: "Bread", SearchTerm: "bread", Category: "Bakery", Unit: "1 loaf"},
	{Label: "Butter", SearchTerm: "butter", Category: "Dairy", Unit: "1 lb"},
	{Label: "Chicken breast", SearchTerm: "chicken breast", Category: "Meat", Unit: "1 lb"},
	{Label: "Rice", SearchTerm: "rice", Category: "Pantry", Unit: "2 lb"},
	{Label: "Flour", SearchTerm: "flour", Category: "Pantry", Unit: "5 lb"},
	{Label: "Sugar", SearchTerm: "sugar", Category: "Pantry", Unit: "4 lb"},
	{Label: "Pasta", SearchTerm: "pasta", Category: "Pantry", Unit: "1 lb"},
	{Label: "Cereal", SearchTerm: "cereal", Category: "Pantry", Unit: "18 oz"},
	{Label: "Coffee", SearchTerm: "coffee", Category: "Pantry", Unit: "12 oz"},
	{Label: "Apples", SearchTerm: "apples", Category: "Produce", Unit: "1 lb"},
	{Label: "Bananas", SearchTerm: "bananas", Category: "Produce", Unit: "1 lb"},
	{Label: "Lettuce", SearchTerm: "lettuce", Category: "Produce", Unit: "1 head"},
	{Label: "Potatoes", SearchTerm: "potatoes", Category: "Produce", Unit: "5 lb"},
	{Label: "Onions", SearchTerm: "onions", Category: "Produce", Unit: "3 lb"},
	{Label: "Ground beef", SearchTerm: "ground beef", Category: "Meat", Unit: "1 lb"},
	{Label: "Cheese", SearchTerm: "cheddar cheese", Category: "Dairy", Unit: "8 oz"},
	{Label: "Yogurt", SearchTerm: "yogurt", Category: "Dairy", Unit: "32 oz"},
	{Label: "Peanut butter", SearchTerm: "peanut butter", Category: "Pantry", Unit: "16 oz"},
}
