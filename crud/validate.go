package crud

import (
	"strings"

	"github.com/GoCodeAlone/mongo-mcp/document"
)

func validateCollection(name string) error {
	switch {
	case name == "":
		return validationf(msgRequired, ArgCollectionName)
	case strings.ContainsRune(name, 0):
		return validationf(msgNoNUL, ArgCollectionName)
	case strings.Contains(name, "$"):
		return validationf(msgNoDollar, ArgCollectionName, name)
	case strings.HasPrefix(name, "system."):
		return validationf(msgNoSystem, ArgCollectionName, name)
	}
	return nil
}

func validateDatabase(name string) error {
	if name == "" {
		return validationf(msgRequired, ArgDatabaseName)
	}
	if i := strings.IndexAny(name, "/\\. \"$\x00"); i >= 0 {
		return validationf(msgInvalidChar, ArgDatabaseName, name[i])
	}
	return nil
}

func requireDocument(doc *document.Document, name string) error {
	if doc == nil {
		return validationf(msgRequired, name)
	}
	return nil
}

// validateUpdateOperators requires every top-level key to be an update
// operator. Replacement documents and mixed forms are rejected.
func validateUpdateOperators(update *document.Document) error {
	if update.Len() == 0 {
		return validationf(msgNeedsOperator, ArgUpdate)
	}
	for _, key := range update.Keys() {
		if !strings.HasPrefix(key, "$") {
			return validationf(msgPlainUpdateField, ArgUpdate, key)
		}
	}
	return nil
}

func validateCount(n *int64, name string) error {
	if n != nil && *n < 0 {
		return validationf(msgNotNegative, name, *n)
	}
	return nil
}
