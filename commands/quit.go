package commands

import "fmt"

func init() {
	quit := func(args []string) bool {
		fmt.Println("Goodbye!")
		return true
	}

	Register(&Command{
		Name:        "/quit",
		Description: "Exit",
		Hidden:      true,
		Handler:     quit,
	})

	// Alias
	Register(&Command{
		Name:        "/exit",
		Description: "Exit",
		Hidden:      true,
		Handler:     quit,
	})
}
