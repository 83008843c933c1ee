package database

import (
	"fmt"
	"strings"
)

// ConstructDatabaseURL joins a server URL and a database name. Existing query
// parameters are preserved and sslmode=disable is added when no sslmode is set.
// An empty database name returns baseURL unchanged.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	host, query, _ := strings.Cut(strings.TrimRight(baseURL, "/"), "?")
	host = strings.TrimRight(host, "/")

	params := []string{}
	if query != "" {
		params = append(params, query)
	}
	if !strings.Contains(query, "sslmode=") {
		params = append(params, "sslmode=disable")
	}

	return fmt.Sprintf("%s/%s?%s", host, databaseName, strings.Join(params, "&"))
}
