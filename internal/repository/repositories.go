package repository

// Repositories は service 層が使うリポジトリ一式です。
type Repositories struct {
	Courses          CourseRepository
	CourseModules    CourseModuleRepository
	CourseExercises  CourseExerciseRepository
	LibraryModules   LibraryModuleRepository
	LibraryExercises LibraryExerciseRepository
	StudentModules   StudentModuleRepository
	StudentExercises StudentExerciseRepository
	Enrollments      EnrollmentRepository
	Events           EventRepository
}

func NewGormRepositories() Repositories {
	return Repositories{
		Courses:          NewGormCourseRepository(),
		CourseModules:    NewGormCourseModuleRepository(),
		CourseExercises:  NewGormCourseExerciseRepository(),
		LibraryModules:   NewGormLibraryModuleRepository(),
		LibraryExercises: NewGormLibraryExerciseRepository(),
		StudentModules:   NewGormStudentModuleRepository(),
		StudentExercises: NewGormStudentExerciseRepository(),
		Enrollments:      NewGormEnrollmentRepository(),
		Events:           NewGormEventRepository(),
	}
}
