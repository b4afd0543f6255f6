// Package repository persists the reservation projection and payment
// shares in MySQL and keeps short-lived coordination state in Redis.
// Driver errors are translated into the model error categories so that
// handlers never see raw SQL failures.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// mysqlDuplicateEntry is the server error number of a unique key clash.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
