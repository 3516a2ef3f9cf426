package misc

import (
	"os"
)

// Secrets resolve from the environment (incl. values pulled in via the .env
// files) but are kept behind this indirection so alternate stores can be
// layered in without touching callers.
var secretsMap = map[string]string{}

func GetSecret(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return secretsMap[key]
}
