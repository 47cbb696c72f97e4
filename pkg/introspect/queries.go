// SPDX-License-Identifier: Apache-2.0

package introspect

// Queries are scoped to a single schema (typically "public") and run inside
// the caller's REPEATABLE READ read-only transaction so every query sees
// the same snapshot.

const tablesQuery = `
SELECT c.relname,
       obj_description(c.oid, 'pg_class')
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND c.relkind = 'r'
ORDER BY c.relname
`

const columnsQuery = `
SELECT a.attrelid::regclass::text AS table_name,
       a.attname,
       pg_catalog.format_type(a.atttypid, a.atttypmod),
       a.attnotnull,
       pg_catalog.pg_get_expr(d.adbin, d.adrelid)
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_catalog.pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
WHERE n.nspname = $1
  AND c.relkind = 'r'
  AND a.attnum > 0
  AND NOT a.attisdropped
ORDER BY a.attrelid, a.attnum
`

const constraintsQuery = `
SELECT con.conname,
       con.conrelid::regclass::text AS table_name,
       con.contype,
       ARRAY(
         SELECT a.attname
         FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
         JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
         ORDER BY k.ord
       ) AS columns,
       pg_catalog.pg_get_constraintdef(con.oid, true) AS definition,
       con.confrelid::regclass::text AS ref_table,
       ARRAY(
         SELECT a.attname
         FROM unnest(con.confkey) WITH ORDINALITY AS k(attnum, ord)
         JOIN pg_catalog.pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.attnum
         ORDER BY k.ord
       ) AS ref_columns,
       con.confupdtype,
       con.confdeltype
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND con.contype IN ('p', 'f', 'u', 'c')
ORDER BY con.conrelid, con.conname
`

const indexesQuery = `
SELECT ic.relname AS index_name,
       tc.relname AS table_name,
       ix.indisunique,
       ix.indisprimary,
       ARRAY(
         SELECT a.attname
         FROM unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord)
         JOIN pg_catalog.pg_attribute a ON a.attrelid = ix.indrelid AND a.attnum = k.attnum
         ORDER BY k.ord
       ) AS columns
FROM pg_catalog.pg_index ix
JOIN pg_catalog.pg_class ic ON ic.oid = ix.indexrelid
JOIN pg_catalog.pg_class tc ON tc.oid = ix.indrelid
JOIN pg_catalog.pg_namespace n ON n.oid = tc.relnamespace
WHERE n.nspname = $1
  AND NOT ix.indisprimary
  AND NOT EXISTS (
    SELECT 1 FROM pg_catalog.pg_constraint con
    WHERE con.conindid = ix.indexrelid AND con.contype IN ('p', 'u')
  )
ORDER BY tc.relname, ic.relname
`

// fkActionNames maps pg_constraint's single-character confupdtype/confdeltype
// codes to the SQL keywords the differ/generator work with.
var fkActionNames = map[byte]string{
	'a': "NO ACTION",
	'r': "RESTRICT",
	'c': "CASCADE",
	'n': "SET NULL",
	'd': "SET DEFAULT",
}
