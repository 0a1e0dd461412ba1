package store

// schema holds the DDL for the snapshot tables. Hourly and daily series have
// different cardinalities, so the tables are independent.
const schema = `
CREATE TABLE IF NOT EXISTS hourly_row (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    time TEXT NOT NULL,
    humidity REAL,
    radiation REAL
);

CREATE TABLE IF NOT EXISTS daily_row (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    time TEXT NOT NULL,
    max_temp REAL,
    min_temp REAL
);
`

const (
	insertHourlySQL = `INSERT INTO hourly_row (time, humidity, radiation) VALUES (?, ?, ?)`
	insertDailySQL  = `INSERT INTO daily_row (time, max_temp, min_temp) VALUES (?, ?, ?)`
	selectHourlySQL = `SELECT time, humidity, radiation FROM hourly_row ORDER BY id`
	selectDailySQL  = `SELECT time, max_temp, min_temp FROM daily_row ORDER BY id`
)
