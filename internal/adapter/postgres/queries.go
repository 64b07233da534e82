package postgres

// queryListTables lists all tables in the public schema, name order.
const queryListTables = `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = 'public'
	ORDER BY table_name`

// queryDescribeTable fetches the column descriptors for one table.
// $1 = table_name. Ordinal position order is part of the contract.
const queryDescribeTable = `
	SELECT
		column_name,
		data_type,
		is_nullable,
		column_default,
		character_maximum_length
	FROM information_schema.columns
	WHERE table_name = $1
	ORDER BY ordinal_position`

// queryFullSchema fetches every public table with its columns, grouped by
// table in the scan loop. Ordered by table name, then ordinal position.
const queryFullSchema = `
	SELECT
		t.table_name,
		c.column_name,
		c.data_type,
		c.is_nullable,
		c.column_default
	FROM information_schema.tables t
	JOIN information_schema.columns c
		ON t.table_name = c.table_name AND t.table_schema = c.table_schema
	WHERE t.table_schema = 'public'
	ORDER BY t.table_name, c.ordinal_position`
