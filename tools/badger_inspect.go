package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"room-chat/infrastructure/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Lists the records of a room-chat database. Safe to run next to a live server.
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", storage.MessageKeyPrefix, "Prefix to scan (msg: or room:)")
	limit := flag.Int("limit", 200, "Maximum number of rows")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rooms := strings.HasPrefix(*prefix, storage.RoomKeyPrefix)
	if rooms {
		table.SetHeader([]string{"Key", "Room", "Name", "Admin", "Created"})
	} else {
		table.SetHeader([]string{"Key", "Room", "At", "Sender", "Content"})
	}

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes) && rows < *limit; it.Next() {
			item := it.Item()
			key := string(item.Key())
			// roomname: entries are an index, not records
			if strings.HasPrefix(key, storage.RoomNameKeyPrefix) {
				continue
			}

			err := item.Value(func(v []byte) error {
				row, err := toRow(key, v, rooms)
				if err != nil {
					fmt.Printf("Error decoding key %s: %v\n", key, err)
					return nil
				}
				table.Append(row)
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func toRow(key string, value []byte, rooms bool) ([]string, error) {
	if rooms {
		room, err := storage.DecodeRoom(value)
		if err != nil {
			return nil, err
		}
		return []string{
			key,
			string(room.ID),
			room.Name,
			string(room.Admin),
			time.UnixMilli(room.CreatedAt).Format(time.DateTime),
		}, nil
	}

	message, err := storage.DecodeMessage(value)
	if err != nil {
		return nil, err
	}
	content := message.Content
	if len(content) > 60 {
		content = content[:60] + "..."
	}
	return []string{
		shortKey(key),
		string(message.RoomID),
		message.CreatedAt.Format("15:04:05.000"),
		message.SenderName,
		content,
	}, nil
}

// shortKey drops the hex room segment, which is unreadable anyway.
func shortKey(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 {
		return key
	}
	return parts[0] + ":…:" + parts[2]
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
