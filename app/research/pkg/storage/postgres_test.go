package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/suite"

	"github.com/iWorld-y/research_report/app/research/pkg/model"
)

type StorageTestSuite struct {
	suite.Suite
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *Storage
}

func (s *StorageTestSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db, s.mock = db, mock

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS report_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS report_sections").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS report_references").WillReturnResult(sqlmock.NewResult(0, 0))

	s.store, err = NewWithDB(context.Background(), db)
	s.Require().NoError(err)
}

func (s *StorageTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *StorageTestSuite) TestCreateRun() {
	s.mock.ExpectQuery("INSERT INTO report_runs").
		WithArgs("company", "商汤科技", StatusRunning).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := s.store.CreateRun(context.Background(), model.KindCompany, "商汤科技")
	s.Require().NoError(err)
	s.Equal(7, id)
}

func (s *StorageTestSuite) TestSaveSections() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec("INSERT INTO report_sections").WithArgs(3, 0, "行业概述", "内容").WillReturnResult(sqlmock.NewResult(1, 1))
	s.mock.ExpectExec("INSERT INTO report_sections").WithArgs(3, 1, "市场规模分析", "规模").WillReturnResult(sqlmock.NewResult(2, 1))
	s.mock.ExpectCommit()

	err := s.store.SaveSections(context.Background(), 3, []model.Section{
		{Name: "行业概述", Content: "内容"},
		{Name: "市场规模分析", Content: "规\x00模"},
	})
	s.NoError(err)
}

func (s *StorageTestSuite) TestSaveReferencesRollback() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec("INSERT INTO report_references").WillReturnError(errors.New("constraint"))
	s.mock.ExpectRollback()

	err := s.store.SaveReferences(context.Background(), 3, []model.Reference{{Title: "t"}})
	s.Error(err)
}

func (s *StorageTestSuite) TestFinishRunFailed() {
	s.mock.ExpectExec("UPDATE report_runs SET status").
		WithArgs(StatusFailed, "", "", "", "", "llm down", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.store.FinishRun(context.Background(), 3, RunResult{Err: errors.New("llm down")}))
}

func (s *StorageTestSuite) TestListRuns() {
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "kind", "subject", "title", "status", "error", "markdown_path", "docx_path", "created_at", "finished_at", "count"}).
		AddRow(2, "industry", "中国智能服务机器人产业", "中国智能服务机器人产业行业研究报告", StatusSucceeded, "", "a.md", "a.docx", now, now).
		AddRow(1, "company", "商汤科技", "", StatusRunning, "", "", "", now, nil)
	s.mock.ExpectQuery("SELECT r.id, r.kind").WithArgs(10, 0).WillReturnRows(rows)
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM report_runs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	runs, total, err := s.store.ListRuns(context.Background(), 0, 0)
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(runs, 2)
	s.Equal(model.KindIndustry, runs[0].Kind)
	s.NotNil(runs[0].FinishedAt)
	s.Nil(runs[1].FinishedAt)
}

func (s *StorageTestSuite) TestGetRunNotFound() {
	s.mock.ExpectQuery("SELECT id, kind, subject").WithArgs(99).WillReturnError(sql.ErrNoRows)

	_, err := s.store.GetRun(context.Background(), 99)
	s.ErrorIs(err, ErrNotFound)
}

func (s *StorageTestSuite) TestGetRun() {
	now := time.Now()
	s.mock.ExpectQuery("SELECT id, kind, subject").WithArgs(5).WillReturnRows(
		sqlmock.NewRows([]string{"id", "kind", "subject", "title", "status", "error", "markdown", "markdown_path", "docx_path", "created_at", "finished_at"}).
			AddRow(5, "macro", "人工智能+", "人工智能+宏观研究报告", StatusSucceeded, "", "# md", "m.md", "m.docx", now, now))
	s.mock.ExpectQuery("SELECT name").WithArgs(5).WillReturnRows(
		sqlmock.NewRows([]string{"name", "content"}).AddRow("政策环境分析", "内容"))
	s.mock.ExpectQuery("SELECT COALESCE\\(title").WithArgs(5).WillReturnRows(
		sqlmock.NewRows([]string{"title", "link", "source", "pub_date"}).AddRow("国务院意见", "https://gov.cn", "gov", "2024-08-01"))

	d, err := s.store.GetRun(context.Background(), 5)
	s.Require().NoError(err)
	s.Equal(model.KindMacro, d.Kind)
	s.Equal(1, d.SectionCount)
	s.Equal("政策环境分析", d.Sections[0].Name)
	s.Equal("国务院意见", d.References[0].Title)
}

func TestStorageTestSuite(t *testing.T) {
	suite.Run(t, new(StorageTestSuite))
}
