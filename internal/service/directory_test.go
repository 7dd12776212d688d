package service

import (
	"context"
	"testing"

	"go_5_course_keep/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// EnrollmentDirectoryTestSuite は登録状態の変化がファンアウト対象に反映されるかを見ます。
type EnrollmentDirectoryTestSuite struct {
	suite.Suite

	env       *testEnv
	directory EnrollmentDirectory
	course    *model.Course
}

// 各テストの前に新しい DB とコースを用意する
func (s *EnrollmentDirectoryTestSuite) SetupTest() {
	s.env = newTestEnv(s.T(), nil)
	s.directory = NewEnrollmentDirectory(s.env.db, s.env.repos.Enrollments)
	s.course = s.env.createCourse(s.T())
	s.env.addModule(s.T(), s.course.ID, "M1", model.ModuleTypeAll, "E1")
}

func TestEnrollmentDirectory(t *testing.T) {
	suite.Run(t, new(EnrollmentDirectoryTestSuite))
}

func (s *EnrollmentDirectoryTestSuite) TestEmptyCourse() {
	students, err := s.directory.EnrolledStudents(context.Background(), s.course.ID)
	s.Require().NoError(err)
	s.Empty(students)
}

func (s *EnrollmentDirectoryTestSuite) TestActiveStudentsOnly() {
	ctx := context.Background()
	a := s.env.enroll(s.T(), s.course.ID)
	b := s.env.enroll(s.T(), s.course.ID)

	students, err := s.directory.EnrolledStudents(ctx, s.course.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]uuid.UUID{a.StudentID, b.StudentID}, students)

	s.Require().NoError(s.env.enrollments.Unenroll(ctx, s.course.ID, a.StudentID))

	students, err = s.directory.EnrolledStudents(ctx, s.course.ID)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{b.StudentID}, students)
}

func (s *EnrollmentDirectoryTestSuite) TestOtherCourseIsolated() {
	ctx := context.Background()
	other := s.env.createCourse(s.T())
	s.env.enroll(s.T(), other.ID)

	students, err := s.directory.EnrolledStudents(ctx, s.course.ID)
	s.Require().NoError(err)
	s.Empty(students)
}
