package differ

import (
	"fmt"
	"sort"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// Summary describes a migration for humans, grouped by object. It is the
// drift report of diagnoseMigrationHistory.
func Summary(m *Migration) string {
	previous, next := m.Schemas.Previous, m.Schemas.Next
	var addedTables, removedTables, addedEnums, removedEnums []string
	changedTables := map[string][]string{}
	changedEnums := map[string][]string{}
	noteTable := func(name, line string) {
		changedTables[name] = append(changedTables[name], line)
	}

	for _, step := range m.Steps {
		switch s := step.(type) {
		case CreateTable:
			addedTables = append(addedTables, next.Tables[s.TableID].Name)
		case DropTable:
			removedTables = append(removedTables, previous.Tables[s.TableID].Name)
		case CreateEnum:
			addedEnums = append(addedEnums, next.Enums[s.EnumID].Name)
		case DropEnum:
			if s.Replaced {
				continue
			}
			removedEnums = append(removedEnums, previous.Enums[s.EnumID].Name)
		case AlterEnum:
			name := next.Enums[s.EnumIDs.Next].Name
			for _, v := range s.Created {
				changedEnums[name] = append(changedEnums[name], fmt.Sprintf("[+] Added variant `%s`", v))
			}
			for _, v := range s.Dropped {
				changedEnums[name] = append(changedEnums[name], fmt.Sprintf("[-] Removed variant `%s`", v))
			}
		case AlterTable:
			table := next.WalkTable(s.TableIDs.Next)
			prevTable := previous.WalkTable(s.TableIDs.Previous)
			for _, change := range s.Changes {
				noteTable(table.Name(), describeTableChange(prevTable, table, change))
			}
		case RedefineTables:
			for _, rt := range s.Tables {
				table := next.WalkTable(rt.TableIDs.Next)
				prevTable := previous.WalkTable(rt.TableIDs.Previous)
				for _, idx := range rt.DroppedColumns {
					noteTable(table.Name(), fmt.Sprintf("[-] Removed column `%s`", prevTable.ColumnAt(idx).Name()))
				}
				for _, cp := range rt.ColumnPairs {
					if cp.Changes.Differs() {
						noteTable(table.Name(), fmt.Sprintf("[*] Altered column `%s` (%s)", table.ColumnAt(cp.ColumnIndexes.Next).Name(), cp.Changes))
					}
				}
				for _, idx := range rt.AddedColumns {
					noteTable(table.Name(), fmt.Sprintf("[+] Added column `%s`", table.ColumnAt(idx).Name()))
				}
			}
		case CreateIndex:
			if s.CausedByCreateTable {
				continue
			}
			idx := next.WalkTable(s.TableID).IndexAt(s.IndexIndex)
			noteTable(idx.Table().Name(), fmt.Sprintf("[+] Added %s index on columns (%s)", idx.Kind(), strings.Join(idx.ColumnNames(), ", ")))
		case DropIndex:
			idx := previous.WalkTable(s.TableID).IndexAt(s.IndexIndex)
			noteTable(idx.Table().Name(), fmt.Sprintf("[-] Removed %s index on columns (%s)", idx.Kind(), strings.Join(idx.ColumnNames(), ", ")))
		case AlterIndex, RedefineIndex:
			var pair MigrationPair[int]
			var ids MigrationPair[sqlschema.TableID]
			if a, ok := s.(AlterIndex); ok {
				pair, ids = a.IndexIndexes, a.TableIDs
			} else {
				r := s.(RedefineIndex)
				pair, ids = r.IndexIndexes, r.TableIDs
			}
			table := next.WalkTable(ids.Next)
			noteTable(table.Name(), fmt.Sprintf("[*] Renamed index `%s` to `%s`",
				previous.WalkTable(ids.Previous).IndexAt(pair.Previous).Name(), table.IndexAt(pair.Next).Name()))
		case AddForeignKey:
			fk := next.WalkTable(s.TableID).ForeignKeyAt(s.ForeignKeyIndex)
			if isCreated(m, s.TableID) {
				continue
			}
			noteTable(fk.Table().Name(), fmt.Sprintf("[+] Added foreign key on columns (%s)", strings.Join(fk.ColumnNames(), ", ")))
		case DropForeignKey:
			fk := previous.WalkTable(s.TableID).ForeignKeyAt(s.ForeignKeyIndex)
			if isDropped(m, s.TableID) {
				continue
			}
			noteTable(fk.Table().Name(), fmt.Sprintf("[-] Removed foreign key on columns (%s)", strings.Join(fk.ColumnNames(), ", ")))
		case DropView:
			removedTables = append(removedTables, previous.Views[s.ViewIndex].Name)
		}
	}

	var b strings.Builder
	section := func(title string, names []string) {
		if len(names) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s\n", title)
		for _, n := range names {
			fmt.Fprintf(&b, "  - %s\n", n)
		}
	}
	section("[+] Added enums", addedEnums)
	section("[-] Removed enums", removedEnums)
	section("[+] Added tables", addedTables)
	section("[-] Removed tables", removedTables)

	for _, name := range sortedKeys(changedEnums) {
		fmt.Fprintf(&b, "\n[*] Changed the `%s` enum\n", name)
		for _, line := range changedEnums[name] {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	for _, name := range sortedKeys(changedTables) {
		fmt.Fprintf(&b, "\n[*] Changed the `%s` table\n", name)
		for _, line := range changedTables[name] {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return strings.TrimPrefix(b.String(), "\n")
}

func describeTableChange(prev, next sqlschema.TableWalker, change TableChange) string {
	switch c := change.(type) {
	case AddColumn:
		return fmt.Sprintf("[+] Added column `%s`", next.ColumnAt(c.ColumnIndex).Name())
	case DropColumn:
		return fmt.Sprintf("[-] Removed column `%s`", prev.ColumnAt(c.ColumnIndex).Name())
	case AlterColumn:
		return fmt.Sprintf("[*] Altered column `%s` (%s)", next.ColumnAt(c.ColumnIndexes.Next).Name(), c.Changes)
	case DropAndRecreateColumn:
		return fmt.Sprintf("[*] Recreated column `%s`", next.ColumnAt(c.ColumnIndexes.Next).Name())
	case AddPrimaryKey:
		return "[+] Added primary key"
	case DropPrimaryKey:
		return "[-] Removed primary key"
	}
	return ""
}

func isCreated(m *Migration, id sqlschema.TableID) bool {
	for _, step := range m.Steps {
		if ct, ok := step.(CreateTable); ok && ct.TableID == id {
			return true
		}
	}
	return false
}

func isDropped(m *Migration, id sqlschema.TableID) bool {
	for _, step := range m.Steps {
		if dt, ok := step.(DropTable); ok && dt.TableID == id {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
