package utils

import (
	"os"
	"os/user"
)

// HomeDir returns the home directory of the current user.
func HomeDir() string {
	if v := os.Getenv("HOME"); v != "" {
		return v
	}
	currentUser, err := user.Current()
	if err != nil {
		panic(err)
	}
	return currentUser.HomeDir
}
