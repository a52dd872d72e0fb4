// Command jaxbucket-migrate walks one bucket's manifest chain in a bbolt
// data directory and, if its head carries no signature (the
// accept_unsigned_legacy case pkg/manifest/chain.go's ValidateOptions
// exists for), appends a freshly signed continuation on top of it —
// mirroring the teacher's cmd/warren-migrate: a plain flag-driven tool
// separate from the cobra-based daily-driver binary, backing up the
// database before touching it and supporting -dry-run.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jaxbucket/jaxbucket/pkg/blob"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/manifest"
)

var (
	dataDir    = flag.String("data-dir", defaultDataDir(), "JaxBucket data directory")
	bucketFlag = flag.String("bucket", "", "Bucket ID (UUID) to migrate")
	dryRun     = flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	backupPath = flag.String("backup", "", "Path to back up bucketlog.db before migrating (default: <data-dir>/bucketlog/bucketlog.db.backup)")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("JaxBucket Manifest Migration Tool - unsigned legacy -> signed tail")
	log.Println("===================================================================")

	if *bucketFlag == "" {
		log.Fatal("-bucket is required")
	}
	bucketID, err := uuid.Parse(*bucketFlag)
	if err != nil {
		log.Fatalf("invalid -bucket: %v", err)
	}

	bucketLogDir := filepath.Join(*dataDir, "bucketlog")
	dbPath := filepath.Join(bucketLogDir, "bucketlog.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("bucket log not found at %s", dbPath)
	}

	log.Printf("Data dir: %s", *dataDir)
	log.Printf("Bucket: %s", bucketID)
	log.Printf("Dry run: %v", *dryRun)

	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = dbPath + ".backup"
		}
		log.Printf("Creating backup: %s", backupFile)
		if err := copyFile(dbPath, backupFile); err != nil {
			log.Fatalf("failed to create backup: %v", err)
		}
		log.Println("backup created successfully")
	}

	blobs, err := blob.NewBoltStore(filepath.Join(*dataDir, "blobs"))
	if err != nil {
		log.Fatalf("open blob store: %v", err)
	}
	defer blobs.Close()

	bucketLog, err := manifest.NewBoltBucketLog(bucketLogDir)
	if err != nil {
		log.Fatalf("open bucket log: %v", err)
	}
	defer bucketLog.Close()

	if err := migrateBucket(bucketID, bucketLog, blobs, *dryRun); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	if *dryRun {
		log.Println("\ndry run completed, no changes made")
		log.Println("run without -dry-run to perform the migration")
	} else {
		log.Println("\nmigration completed successfully")
	}
}

// migrateBucket walks bucketID's full chain looking for an unsigned
// legacy manifest. If the head is unsigned, it appends one new manifest
// at height+1 carrying the head's tree/shares/pins state forward, signed
// with this data directory's identity. History already signed is left
// untouched: signatures are appended to, never rewritten in place, since
// manifest blobs are content-addressed and existing log heights must
// stay exactly what they were.
func migrateBucket(bucketID uuid.UUID, bucketLog manifest.BucketLog, blobs blob.Store, dryRun bool) error {
	entries, err := bucketLog.List(bucketID)
	if err != nil {
		return fmt.Errorf("list bucket log: %w", err)
	}
	if len(entries) == 0 {
		log.Println("no history found for this bucket - nothing to migrate")
		return nil
	}

	unsigned := 0
	for _, e := range entries {
		m, err := manifest.Get(e.Link, blobs)
		if err != nil {
			return fmt.Errorf("decode manifest at height %d: %w", e.Height, err)
		}
		if len(m.Signature) == 0 {
			unsigned++
			log.Printf("height %d: unsigned legacy manifest", e.Height)
		}
	}
	log.Printf("found %d unsigned manifest(s) out of %d", unsigned, len(entries))

	if unsigned == 0 {
		log.Println("chain is already fully signed - nothing to migrate")
		return nil
	}

	head := entries[len(entries)-1]
	headManifest, err := manifest.Get(head.Link, blobs)
	if err != nil {
		return fmt.Errorf("decode head manifest: %w", err)
	}
	if len(headManifest.Signature) != 0 {
		log.Println("head is already signed; earlier unsigned heights remain as history, not rewritten")
		return nil
	}

	if dryRun {
		log.Printf("\n[DRY RUN] would sign and append a new manifest at height %d", head.Height+1)
		return nil
	}

	sk, err := loadOrCreateIdentity(*dataDir)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	tail := headManifest
	tail.Height = head.Height + 1
	tail.Previous = &head.Link
	tail.Author = nil
	tail.Signature = nil
	signed, err := manifest.Sign(tail, sk)
	if err != nil {
		return fmt.Errorf("sign migrated tail: %w", err)
	}

	newLink, err := manifest.Put(signed, blobs)
	if err != nil {
		return fmt.Errorf("store migrated tail: %w", err)
	}
	if err := bucketLog.Append(bucketID, newLink, signed.Height, head.Link); err != nil {
		return fmt.Errorf("append migrated tail: %w", err)
	}

	log.Printf("appended signed manifest at height %d (%s)", signed.Height, newLink)
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jaxbucket"
	}
	return filepath.Join(home, ".jaxbucket")
}

func loadOrCreateIdentity(dataDir string) (jaxcrypto.SecretKey, error) {
	path := filepath.Join(dataDir, "identity.key")
	raw, err := os.ReadFile(path)
	if err == nil {
		return jaxcrypto.SecretKeyFromBytes(raw)
	}
	if !os.IsNotExist(err) {
		return jaxcrypto.SecretKey{}, fmt.Errorf("read identity: %w", err)
	}
	return jaxcrypto.SecretKey{}, fmt.Errorf("no identity found at %s - run jaxbucket once first", path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
