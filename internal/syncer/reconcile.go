package syncer

import (
	"fmt"
	"path"
	"strings"

	"github.com/scwhite/photosync/internal/ledger"
	"github.com/scwhite/photosync/internal/library"
	"github.com/scwhite/photosync/internal/photos"
)

// UploadTask is one pending local-to-remote transfer.
type UploadTask struct {
	File library.LocalFile
}

// DownloadTask is one pending remote-to-local transfer. When Adopt is set
// the target path already holds an unrecorded file with the same name, so
// applying the task records the pairing without transferring anything.
type DownloadTask struct {
	Item       photos.RemoteItem
	TargetPath string

	Adopt         bool
	AdoptIdentity string
}

// Plan is the outcome of one reconciliation pass: the transfers needed to
// converge local and remote, given what the ledger already records.
type Plan struct {
	Uploads   []UploadTask
	Downloads []DownloadTask
}

// PlanUploads emits an upload task for every local file whose identity is
// absent from the ledger or recorded without a remote ID. A file whose
// identity already maps to a remote ID is never re-uploaded. Output order
// follows scanner order; planning mutates nothing, so planning twice over
// the same inputs yields the same task set.
func PlanUploads(entries map[string]ledger.Entry, locals []library.LocalFile) []UploadTask {
	var tasks []UploadTask

	for _, lf := range locals {
		if e, ok := entries[lf.Identity]; ok && e.RemoteID != "" {
			continue
		}

		tasks = append(tasks, UploadTask{File: lf})
	}

	return tasks
}

// PlanDownloads emits a download task for every remote item not yet in the
// ledger's remote index, in selector order. Duplicate IDs across selector
// sources were already suppressed, but recorded IDs are checked here so a
// remote item is downloaded at most once ever.
//
// Target paths are derived from the remote filename: album members go into
// a subfolder named after their first album, everything else lands at the
// library root. When the target path already holds a scanned file:
//   - if that file's identity is unrecorded, the remote item is adopted
//     (recorded as already present, no transfer);
//   - otherwise the target is disambiguated with a numeric suffix rather
//     than silently overwritten.
//
// Each local file and each identity can be adopted at most once per plan.
// Further remote items deriving the same target fall through to the
// suffixed-download branch, so their content is still fetched.
func PlanDownloads(recorded map[string]string, entries map[string]ledger.Entry, remotes []photos.RemoteItem, locals []library.LocalFile) []DownloadTask {
	byPath := make(map[string]library.LocalFile, len(locals))
	for _, lf := range locals {
		byPath[lf.Path] = lf
	}

	// claimed tracks paths taken by files on disk or by earlier tasks in
	// this plan, so two remote items named IMG_0001.jpg cannot collide.
	claimed := make(map[string]bool, len(locals))
	for p := range byPath {
		claimed[p] = true
	}

	adopted := make(map[string]bool)

	var tasks []DownloadTask

	for _, item := range remotes {
		if _, ok := recorded[item.ID]; ok {
			continue
		}

		target := targetPath(item)

		if lf, exists := byPath[target]; exists {
			e, tracked := entries[lf.Identity]
			if (!tracked || e.RemoteID == "") && !adopted[lf.Identity] {
				adopted[lf.Identity] = true
				delete(byPath, target)

				tasks = append(tasks, DownloadTask{
					Item:          item,
					TargetPath:    target,
					Adopt:         true,
					AdoptIdentity: lf.Identity,
				})

				continue
			}
		}

		target = uniqueTarget(target, claimed)
		claimed[target] = true

		tasks = append(tasks, DownloadTask{Item: item, TargetPath: target})
	}

	return tasks
}

// BuildPlan combines both plans against one ledger snapshot. A local file
// adopted by a download is excluded from the uploads, since applying the
// adoption links its identity to the remote item.
func BuildPlan(entries map[string]ledger.Entry, recorded map[string]string, locals []library.LocalFile, remotes []photos.RemoteItem) Plan {
	downloads := PlanDownloads(recorded, entries, remotes, locals)

	adopted := make(map[string]bool)
	for _, dt := range downloads {
		if dt.Adopt {
			adopted[dt.AdoptIdentity] = true
		}
	}

	uploads := PlanUploads(entries, locals)

	kept := uploads[:0]
	for _, ut := range uploads {
		if !adopted[ut.File.Identity] {
			kept = append(kept, ut)
		}
	}

	return Plan{Uploads: kept, Downloads: downloads}
}

// targetPath computes where a remote item should land locally. Matches the
// original layout: album members under a folder named after the first
// album, everything else at the top level.
func targetPath(item photos.RemoteItem) string {
	name := library.NormalizePath(path.Base(item.Filename))
	if name == "" || name == "." {
		name = item.ID + ".jpg"
	}

	if len(item.Albums) > 0 {
		return library.NormalizePath(item.Albums[0] + "/" + name)
	}

	return name
}

// uniqueTarget appends (1), (2), ... before the extension until the path
// is unclaimed.
func uniqueTarget(target string, claimed map[string]bool) string {
	if !claimed[target] {
		return target
	}

	ext := path.Ext(target)
	base := strings.TrimSuffix(target, ext)

	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s(%d)%s", base, i, ext)
		if !claimed[candidate] {
			return candidate
		}
	}
}
