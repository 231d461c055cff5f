package main

import "github.com/dmitrijs2005/recipekeeper/internal/admin"

func main() {
	admin.Execute()
}
