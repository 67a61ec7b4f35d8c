package dbserver

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/workingcopy/status"
)

const schemaSuffix = "_sno"

var nonIdentifier = regexp.MustCompile(`[^a-z0-9]+`)

// DefaultSchema returns a database schema named after the directory of the working copy
func DefaultSchema(workdirPath string) string {
	base := filepath.Base(filepath.Clean(workdirPath))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	schema := nonIdentifier.ReplaceAllString(strings.ToLower(stem), "_") + schemaSuffix
	if schema[0] >= '0' && schema[0] <= '9' {
		schema = "_" + schema
	}
	return schema
}

func pathParts(u *url.URL) []string {
	if u.Path == "" {
		return nil
	}
	return strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 4)
}

// CheckValidURI checks that a working copy URI has the form scheme://[HOST]/DBNAME/DBSCHEMA.
//
// When only the database is given and the working copy directory is known, the error suggests
// a URI with a default schema.
func CheckValidURI(uri string, d *Dialect, workdirPath string) error {
	u, err := url.Parse(uri)
	expecting := fmt.Sprintf("Expecting URI in form: %s://[HOST]/DBNAME/DBSCHEMA", d.Scheme)
	if err != nil || u.Scheme != d.Scheme {
		return errors.New(fmt.Sprintf("Invalid %s URI - %s", d.TypeName, expecting)).Wrap(status.ErrUsage)
	}

	parts := pathParts(u)
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return nil
	}

	var suggestion string
	if len(parts) == 1 && parts[0] != "" && workdirPath != "" {
		suggested := *u
		suggested.Path = "/" + parts[0] + "/" + DefaultSchema(workdirPath)
		suggested.RawPath = ""
		suggested.Fragment = ""
		suggestion = "\nFor example: " + suggested.String()
	}
	return errors.New(fmt.Sprintf(
		"Invalid %s URI - URI requires both database name and database schema:\n%s%s",
		d.TypeName, expecting, suggestion,
	)).Wrap(status.ErrUsage)
}

// SplitSchema separates the schema from a valid working copy URI, leaving the URI of the database
func SplitSchema(uri string) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", errors.New("invalid working copy URI " + uri).Wrap(status.ErrUsage)
	}
	parts := pathParts(u)
	if len(parts) != 2 {
		return "", "", errors.New("working copy URI requires both database name and database schema: " + uri).Wrap(status.ErrUsage)
	}
	db := *u
	db.Path = "/" + parts[0]
	db.RawPath = ""
	db.Fragment = ""
	return db.String(), parts[1], nil
}
