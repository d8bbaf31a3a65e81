package render

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/text/language"

	"github.com/jlucaspains/roadmapboard/internal/models"
)

// Lang is a supported dashboard language
type Lang string

const (
	Korean   Lang = "ko"
	English  Lang = "en"
	Japanese Lang = "ja"
)

// Languages lists the supported languages in selector order
var Languages = []Lang{Korean, English, Japanese}

var matcher = language.NewMatcher([]language.Tag{
	language.Korean,
	language.English,
	language.Japanese,
})

// MatchLang picks the supported language closest to the given preferences.
// Each preference is a language tag or an Accept-Language header value; the
// first one that parses wins. Nothing usable yields fallback.
func MatchLang(fallback Lang, prefs ...string) Lang {
	for _, pref := range prefs {
		if pref == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(pref)
		if err != nil || len(tags) == 0 {
			continue
		}
		_, index, confidence := matcher.Match(tags...)
		if confidence == language.No {
			continue
		}
		return Languages[index]
	}
	return fallback
}

var translations = map[Lang]map[string]string{
	Korean: {
		"loading":          "로딩 중...",
		"error":            "오류가 발생했습니다",
		"roadmap":          "로드맵",
		"version":          "버전",
		"issues":           "일감",
		"subject":          "제목",
		"status":           "상태",
		"assignee":         "담당자",
		"link":             "링크",
		"viewInRedmine":    "Redmine에서 보기",
		"priority":         "우선순위",
		"category":         "범주",
		"startDate":        "시작일",
		"endDate":          "종료일",
		"progress":         "진척도",
		"estimatedHours":   "예상시간",
		"spentHours":       "소요시간",
		"dueDate":          "마감일",
		"createdOn":        "등록",
		"versionSelect":    "버전 선택",
		"allVersions":      "전체 버전",
		"allProjects":      "전체 프로젝트",
		"searchVersions":   "버전명 검색",
		"search":           "검색",
		"sortVersions":     "버전 정렬",
		"detailView":       "상세보기",
		"basicView":        "기본보기",
		"reload":           "새로고침",
		"includedProjects": "포함된 프로젝트",
		"totalVersions":    "전체 버전",
		"loadedIssues":     "로드된 이슈",
		"versionsPerPage":  "페이지당 버전",
		"loadingVersions":  "버전 정보를 불러오는 중...",
		"loadingIssues":    "이슈를 불러오는 중...",
		"noIssues":         "이 버전에 등록된 이슈가 없습니다.",
		"noVersions":       "표시할 버전이 없습니다.",
		"loadFailed":       "버전 목록을 불러오는데 실패했습니다",
		"issueLoadFailed":  "이슈를 불러오지 못했습니다",
		"partialFailure":   "일부 프로젝트의 버전을 불러오지 못했습니다",
		"retry":            "다시 시도",
		"prev":             "이전",
		"next":             "다음",
		"issueCount":       "이슈 %d개",
		"issuesTruncated":  "전체 %d개 중 %d개 표시",
		"versionOpen":      "진행중",
		"versionLocked":    "잠김",
		"versionClosed":    "종료",
	},
	English: {
		"loading":          "Loading...",
		"error":            "An error occurred",
		"roadmap":          "Roadmap",
		"version":          "Version",
		"issues":           "Issues",
		"subject":          "Subject",
		"status":           "Status",
		"assignee":         "Assignee",
		"link":             "Link",
		"viewInRedmine":    "View in Redmine",
		"priority":         "Priority",
		"category":         "Category",
		"startDate":        "Start date",
		"endDate":          "Due date",
		"progress":         "Progress",
		"estimatedHours":   "Estimated",
		"spentHours":       "Spent",
		"dueDate":          "Due",
		"createdOn":        "Created",
		"versionSelect":    "Version",
		"allVersions":      "All versions",
		"allProjects":      "All projects",
		"searchVersions":   "Search versions",
		"search":           "Search",
		"sortVersions":     "Sort versions",
		"detailView":       "Detailed view",
		"basicView":        "Basic view",
		"reload":           "Reload",
		"includedProjects": "Projects",
		"totalVersions":    "Versions",
		"loadedIssues":     "Loaded issues",
		"versionsPerPage":  "On this page",
		"loadingVersions":  "Loading versions...",
		"loadingIssues":    "Loading issues...",
		"noIssues":         "No issues are assigned to this version.",
		"noVersions":       "No versions to show.",
		"loadFailed":       "Failed to load versions",
		"issueLoadFailed":  "Failed to load issues",
		"partialFailure":   "Versions of some projects could not be loaded",
		"retry":            "Retry",
		"prev":             "Previous",
		"next":             "Next",
		"issueCount":       "%d issues",
		"issuesTruncated":  "showing %[2]d of %[1]d",
		"versionOpen":      "Open",
		"versionLocked":    "Locked",
		"versionClosed":    "Closed",
	},
	Japanese: {
		"loading":          "読み込み中...",
		"error":            "エラーが発生しました",
		"roadmap":          "ロードマップ",
		"version":          "バージョン",
		"issues":           "課題",
		"subject":          "件名",
		"status":           "ステータス",
		"assignee":         "担当者",
		"link":             "リンク",
		"viewInRedmine":    "Redmineで表示",
		"priority":         "優先度",
		"category":         "カテゴリ",
		"startDate":        "開始日",
		"endDate":          "期日",
		"progress":         "進捗率",
		"estimatedHours":   "予定工数",
		"spentHours":       "作業時間",
		"dueDate":          "期日",
		"createdOn":        "作成",
		"versionSelect":    "バージョン選択",
		"allVersions":      "すべてのバージョン",
		"allProjects":      "すべてのプロジェクト",
		"searchVersions":   "バージョン名で検索",
		"search":           "検索",
		"sortVersions":     "バージョン並べ替え",
		"detailView":       "詳細表示",
		"basicView":        "基本表示",
		"reload":           "再読み込み",
		"includedProjects": "プロジェクト",
		"totalVersions":    "バージョン",
		"loadedIssues":     "読み込み済み課題",
		"versionsPerPage":  "このページ",
		"loadingVersions":  "バージョンを読み込み中...",
		"loadingIssues":    "課題を読み込み中...",
		"noIssues":         "このバージョンに課題はありません。",
		"noVersions":       "表示するバージョンがありません。",
		"loadFailed":       "バージョンの読み込みに失敗しました",
		"issueLoadFailed":  "課題の読み込みに失敗しました",
		"partialFailure":   "一部のプロジェクトのバージョンを読み込めませんでした",
		"retry":            "再試行",
		"prev":             "前へ",
		"next":             "次へ",
		"issueCount":       "課題 %d件",
		"issuesTruncated":  "全%d件中%d件を表示",
		"versionOpen":      "進行中",
		"versionLocked":    "ロック中",
		"versionClosed":    "終了",
	},
}

// Translator resolves UI strings and formats values for one language
type Translator struct {
	Lang Lang
}

func NewTranslator(lang Lang) Translator {
	if _, ok := translations[lang]; !ok {
		lang = Korean
	}
	return Translator{Lang: lang}
}

// Get returns the string for key, or key itself when it is not translated
func (t Translator) Get(key string) string {
	if s, ok := translations[t.Lang][key]; ok {
		return s
	}
	return key
}

// Format is Get followed by fmt.Sprintf
func (t Translator) Format(key string, args ...any) string {
	return fmt.Sprintf(t.Get(key), args...)
}

// VersionStatus labels a version status, passing unknown values through
func (t Translator) VersionStatus(status models.VersionStatus) string {
	switch status {
	case models.VersionOpen:
		return t.Get("versionOpen")
	case models.VersionLocked:
		return t.Get("versionLocked")
	case models.VersionClosed:
		return t.Get("versionClosed")
	default:
		return string(status)
	}
}

// Date formats a calendar date the way the language's locale writes it.
// The zero time renders as "-".
func (t Translator) Date(d time.Time) string {
	if d.IsZero() {
		return "-"
	}
	switch t.Lang {
	case English:
		return fmt.Sprintf("%d/%d/%d", int(d.Month()), d.Day(), d.Year())
	case Japanese:
		return fmt.Sprintf("%d/%d/%d", d.Year(), int(d.Month()), d.Day())
	default:
		return fmt.Sprintf("%d. %d. %d.", d.Year(), int(d.Month()), d.Day())
	}
}

// OptionalDate formats a possibly absent date
func (t Translator) OptionalDate(d *models.Date) string {
	if d == nil {
		return "-"
	}
	return t.Date(d.Time)
}

// Hours formats an optional hour count as "4.5h"; absent or zero is "-"
func (t Translator) Hours(h *float64) string {
	if h == nil || *h == 0 {
		return "-"
	}
	return strconv.FormatFloat(*h, 'f', -1, 64) + "h"
}
