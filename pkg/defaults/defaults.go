// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all runtime configuration defaults.
//
// Usage:
//
//	cfg.Concurrency = defaults.ConcurrencyMedium
//	cfg.Noncritical = defaults.NoncriticalWarnings()
//	req.Header.Set("User-Agent", defaults.UserAgent(""))
//
// DO NOT use hardcoded values like `Concurrency: 10` anywhere.
// Instead, reference the appropriate constant from this package.
package defaults

import "fmt"

// Version is the current conecheck version
const Version = "1.2.0"

// ToolName is used for service names, user agents and metric prefixes.
const ToolName = "conecheck"

// ============================================================================
// CONCURRENCY SETTINGS
// ============================================================================
//
// Use these for worker pools, semaphores, and parallel operations.
// Remote VO services are run by small institutes; stay polite.
// ============================================================================

const (
	// ConcurrencyMinimal is for strictly sequential validation (1)
	ConcurrencyMinimal = 1

	// ConcurrencyLow is for light validation runs (4)
	ConcurrencyLow = 4

	// ConcurrencyMedium is the standard parallel validation width (10)
	ConcurrencyMedium = 10

	// ConcurrencyMax is the upper bound accepted from configuration (64)
	ConcurrencyMax = 64
)

// ============================================================================
// RETRY SETTINGS
// ============================================================================

const (
	// RetryNone disables retries (0)
	RetryNone = 0

	// RetryLow is the default for service probes (1)
	RetryLow = 1

	// RetryMedium is used for the registry download (3)
	RetryMedium = 3
)

// ============================================================================
// BUFFER SIZES
// ============================================================================

const (
	// BufferMedium is the default VOTable response limit (32MB)
	BufferMedium = 32 * 1024 * 1024

	// BufferMax is the registry download limit (128MB)
	BufferMax = 128 * 1024 * 1024
)

// ============================================================================
// RATE LIMITING
// ============================================================================

const (
	// RateLimitNone disables rate limiting (0)
	RateLimitNone = 0

	// RateLimitLow is a conservative probe rate (5 req/s)
	RateLimitLow = 5
)

// ============================================================================
// HTTP HEADERS
// ============================================================================

const (
	// AcceptVOTable is sent with every probe
	AcceptVOTable = "application/x-votable+xml, text/xml;q=0.9, */*;q=0.5"

	// UAMinimal is a minimal user agent
	UAMinimal = "conecheck/" + Version
)

// UserAgent returns the conecheck user agent with context
func UserAgent(context string) string {
	if context == "" {
		return UAMinimal
	}
	return fmt.Sprintf("conecheck/%s (%s)", Version, context)
}

// ============================================================================
// REMOTE LOCATIONS
// ============================================================================

const (
	// RegistryURL is the VAO registry query that lists every Cone Search
	// service as a VOTable (CS_MSTR_LIST).
	RegistryURL = "http://vao.stsci.edu/directory/NVORegInt.asmx/VOTCapabilityPredOpt?predicate=1%3D1&capability=conesearch&VOTStyleOption=2"

	// BaseURL is where published validation databases live (BASEURL).
	BaseURL = "http://stsdas.stsci.edu/astrolib/vo_databases/"
)

// DefaultURLs returns the curated subset of services validated when a caller
// asks for the default URL list.
func DefaultURLs() []string {
	return []string{
		"http://archive.noao.edu/nvo/usno.php?cat=a&",
		"http://gsss.stsci.edu/webservices/vo/ConeSearch.aspx?CAT=GSC23&",
		"http://irsa.ipac.caltech.edu/cgi-bin/Oasis/CatSearch/nph-catsearch?CAT=fp_psc&",
		"http://vizier.u-strasbg.fr/viz-bin/votable/-A?-source=I/220/out&",
		"http://vizier.u-strasbg.fr/viz-bin/votable/-A?-source=I/243/out&",
		"http://vizier.u-strasbg.fr/viz-bin/votable/-A?-source=I/252/out&",
		"http://vizier.u-strasbg.fr/viz-bin/votable/-A?-source=I/254/out&",
		"http://vizier.u-strasbg.fr/viz-bin/votable/-A?-source=I/255/out&",
		"http://vizier.u-strasbg.fr/viz-bin/votable/-A?-source=I/284/out&",
		"http://vizier.u-strasbg.fr/viz-bin/votable/-A?-source=II/246/out&",
		"http://www.nofs.navy.mil/cgi-bin/vo_cone.cgi?CAT=USNO-A2&",
		"http://www.nofs.navy.mil/cgi-bin/vo_cone.cgi?CAT=USNO-B1&",
	}
}

// NoncriticalWarnings returns the VOTable warning codes that do not demote
// a service out of the good bucket (CS_NONCRIT).
func NoncriticalWarnings() []string {
	return []string{
		"W03", "W06", "W07", "W09", "W10", "W15", "W17", "W20", "W21",
		"W22", "W27", "W28", "W29", "W41", "W42", "W48", "W50",
	}
}

// ============================================================================
// TEST QUERY
// ============================================================================
//
// Every probe appends a small cone query so the service returns a real table.
// ============================================================================

const (
	// TestQueryRA is the right ascension of the probe cone (deg)
	TestQueryRA = 0.0

	// TestQueryDec is the declination of the probe cone (deg)
	TestQueryDec = 0.0

	// TestQuerySR is the search radius of the probe cone (deg)
	TestQuerySR = 0.1

	// TestQueryVerb asks for every column (VERB=3)
	TestQueryVerb = 3
)

// ============================================================================
// DATABASE FILES
// ============================================================================

const (
	// DatabaseVersion is the JSON database format version written and accepted
	DatabaseVersion = 1

	// FileGood holds services with no critical diagnostics
	FileGood = "conesearch_good.json"

	// FileWarn holds services with critical warnings only
	FileWarn = "conesearch_warn.json"

	// FileException holds services whose responses raised exceptions
	FileException = "conesearch_exception.json"

	// FileError holds services that could not be reached
	FileError = "conesearch_error.json"

	// ResultsDir is the per-run directory for saved responses and the HTML index
	ResultsDir = "results"
)

// ============================================================================
// CATALOG STATUS
// ============================================================================
//
// Every validated service lands in exactly one of four buckets.
// ============================================================================

const (
	// StatusGood: no diagnostics, or only non-critical warnings
	StatusGood = "good"

	// StatusWarn: critical warnings but no exceptions
	StatusWarn = "warn"

	// StatusException: the response raised VOTable or Cone Search exceptions
	StatusException = "exception"

	// StatusError: the service could not be queried at all
	StatusError = "error"
)

// Statuses returns the four status names in report order.
func Statuses() []string {
	return []string{StatusGood, StatusWarn, StatusException, StatusError}
}

// StatusFile returns the database file name of a status, or "" if unknown.
func StatusFile(status string) string {
	switch status {
	case StatusGood:
		return FileGood
	case StatusWarn:
		return FileWarn
	case StatusException:
		return FileException
	case StatusError:
		return FileError
	}
	return ""
}

// StatusKey returns the short database key recorded as validate_out_db_name.
func StatusKey(status string) string {
	switch status {
	case StatusException:
		return "excp"
	case StatusError:
		return "nerr"
	}
	return status
}
