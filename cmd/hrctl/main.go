package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	repo "github.com/ogurasousui/hr-records/internal/adapters/repository/postgres"
	"github.com/ogurasousui/hr-records/internal/core/assignment"
	"github.com/ogurasousui/hr-records/internal/core/auth"
	"github.com/ogurasousui/hr-records/internal/core/employee"
	"github.com/ogurasousui/hr-records/internal/core/payroll"
	"github.com/ogurasousui/hr-records/internal/platform/config"
	pg "github.com/ogurasousui/hr-records/internal/platform/db/postgres"
	"github.com/ogurasousui/hr-records/internal/platform/logging"
)

const usageText = `usage: hrctl [-config path] <command> [flags]

commands:
  bootstrap-admin   create the first admin login (only when none exists)
  create-login      create a login (admin session required)
  deactivate-login  deactivate a login (admin session required)
  change-password   change the secret of the authenticated login
  add-employee      create an employee record
  get-employee      show a single employee
  list-employees    list employees
  assign            open a new division or job title assignment
  end-assignment    close the current assignment
  current           show the current assignment
  history           show the full assignment history
  adjust-salaries   apply a percentage adjustment to a salary range

authenticated commands read HRCTL_USERNAME and HRCTL_SECRET from the environment.
`

type app struct {
	gate        *auth.Gate
	employees   *employee.Service
	assignments *assignment.Service
	payroll     *payroll.Service
}

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usageText)
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)
	args := flag.Args()[1:]

	cfg, err := config.Load(effectiveConfigPath(*configPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database pool: %v", err)
	}
	defer dbPool.Close()

	tx := pg.NewTransactionManager(dbPool)
	employeeRepo := repo.NewEmployeeRepository(dbPool)
	credentialRepo := repo.NewCredentialRepository(dbPool)
	assignmentRepo := repo.NewAssignmentRepository(dbPool)

	hasher := auth.NewArgon2Hasher(auth.Argon2Params{
		MemoryKiB:   cfg.Auth.Argon2.MemoryKiB,
		Iterations:  cfg.Auth.Argon2.Iterations,
		Parallelism: cfg.Auth.Argon2.Parallelism,
		SaltLength:  cfg.Auth.Argon2.SaltLength,
		KeyLength:   cfg.Auth.Argon2.KeyLength,
	})
	gate := auth.NewGate(credentialRepo, hasher, nil, logger)

	a := &app{
		gate:        gate,
		employees:   employee.NewService(employeeRepo, gate, nil),
		assignments: assignment.NewService(assignmentRepo, gate, nil, tx),
		payroll:     payroll.NewService(employeeRepo, gate, nil, tx, logger),
	}

	if err := a.run(ctx, command, args); err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "bootstrap-admin":
		return a.bootstrapAdmin(ctx, args)
	case "create-login":
		return a.createLogin(ctx, args)
	case "deactivate-login":
		return a.deactivateLogin(ctx, args)
	case "change-password":
		return a.changePassword(ctx, args)
	case "add-employee":
		return a.addEmployee(ctx, args)
	case "get-employee":
		return a.getEmployee(ctx, args)
	case "list-employees":
		return a.listEmployees(ctx, args)
	case "assign":
		return a.assign(ctx, args)
	case "end-assignment":
		return a.endAssignment(ctx, args)
	case "current":
		return a.current(ctx, args)
	case "history":
		return a.history(ctx, args)
	case "adjust-salaries":
		return a.adjustSalaries(ctx, args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) bootstrapAdmin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bootstrap-admin", flag.ExitOnError)
	username := fs.String("username", "", "admin username")
	secret := fs.String("secret", "", "admin secret (min 8 characters)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	created, err := a.gate.BootstrapAdmin(ctx, auth.BootstrapAdminInput{Username: *username, Secret: *secret})
	if err != nil {
		return err
	}

	fmt.Printf("admin %s created (id=%s)\n", created.Username, created.ID)
	return nil
}

func (a *app) createLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-login", flag.ExitOnError)
	username := fs.String("username", "", "login username")
	secret := fs.String("secret", "", "login secret (min 8 characters)")
	role := fs.String("role", string(auth.RoleMember), "role: admin or member")
	employeeID := fs.String("employee", "", "linked employee id (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.login(ctx)
	if err != nil {
		return err
	}
	defer a.gate.Logout(session)

	var linked *string
	if *employeeID != "" {
		linked = employeeID
	}

	created, err := a.gate.CreateLogin(ctx, session, auth.CreateLoginInput{
		Username:         *username,
		Secret:           *secret,
		Role:             auth.Role(*role),
		LinkedEmployeeID: linked,
	})
	if err != nil {
		return err
	}

	fmt.Printf("login %s created (id=%s role=%s)\n", created.Username, created.ID, created.Role)
	return nil
}

func (a *app) deactivateLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("deactivate-login", flag.ExitOnError)
	username := fs.String("username", "", "login username to deactivate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.login(ctx)
	if err != nil {
		return err
	}
	defer a.gate.Logout(session)

	if err := a.gate.Deactivate(ctx, session, *username); err != nil {
		return err
	}

	fmt.Printf("login %s deactivated\n", *username)
	return nil
}

func (a *app) changePassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("change-password", flag.ExitOnError)
	newSecret := fs.String("new-secret", "", "new secret (min 8 characters)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.login(ctx)
	if err != nil {
		return err
	}
	defer a.gate.Logout(session)

	if err := a.gate.ChangePassword(ctx, session, os.Getenv("HRCTL_SECRET"), *newSecret); err != nil {
		return err
	}

	fmt.Println("password updated")
	return nil
}

func (a *app) addEmployee(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-employee", flag.ExitOnError)
	id := fs.String("id", "", "employee id")
	salary := fs.Int64("salary", 0, "current salary in minor units")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.login(ctx)
	if err != nil {
		return err
	}
	defer a.gate.Logout(session)

	created, err := a.employees.CreateEmployee(ctx, session, employee.CreateEmployeeInput{
		ID:            *id,
		CurrentSalary: *salary,
	})
	if err != nil {
		return err
	}

	fmt.Printf("employee %s created (salary=%d status=%s)\n", created.ID, created.CurrentSalary, created.Status)
	return nil
}

func (a *app) getEmployee(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get-employee", flag.ExitOnError)
	id := fs.String("id", "", "employee id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.login(ctx)
	if err != nil {
		return err
	}
	defer a.gate.Logout(session)

	found, err := a.employees.GetEmployee(ctx, session, *id)
	if err != nil {
		return err
	}

	fmt.Printf("%s\tsalary=%d\tstatus=%s\n", found.ID, found.CurrentSalary, found.Status)
	return nil
}

func (a *app) listEmployees(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list-employees", flag.ExitOnError)
	status := fs.String("status", "", "filter by status: active or inactive")
	pageSize := fs.Int("page-size", 0, "page size (default 50)")
	pageToken := fs.String("page-token", "", "page token from a previous run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.login(ctx)
	if err != nil {
		return err
	}
	defer a.gate.Logout(session)

	in := employee.ListEmployeesInput{PageSize: *pageSize, PageToken: *pageToken}
	if *status != "" {
		s := employee.Status(*status)
		in.Status = &s
	}

	result, err := a.employees.ListEmployees(ctx, session, in)
	if err != nil {
		return err
	}

	for _, e := range result.Employees {
		fmt.Printf("%s\tsalary=%d\tstatus=%s\n", e.ID, e.CurrentSalary, e.Status)
	}
	if result.NextPageToken != "" {
		fmt.Printf("next page token: %s\n", result.NextPageToken)
	}
	return nil
}

func (a *app) assign(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("assign", flag.ExitOnError)
	employeeID := fs.String("employee", "", "employee id")
	kind := fs.String("kind", string(assignment.KindDivision), "assignment kind: division or job_title")
	target := fs.String("target", "", "division or job title id")
	date := fs.String("date", "", "effective date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	effective, err := parseDate(*date)
	if err != nil {
		return err
	}

	session, err := a.login(ctx)
	if err != nil {
		return err
	}
	defer a.gate.Logout(session)

	created, err := a.assignments.Assign(ctx, session, *employeeID, assignment.Kind(*kind), *target, effective)
	if err != nil {
		return err
	}

	fmt.Printf("assignment %s opened: %s %s -> %s from %s\n",
		created.ID, created.EmployeeID, created.Kind, created.TargetID, created.StartDate.Format("2006-01-02"))
	return nil
}

func (a *app) endAssignment(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("end-assignment", flag.ExitOnError)
	employeeID := fs.String("employee", "", "employee id")
	kind := fs.String("kind", string(assignment.KindDivision), "assignment kind: division or job_title")
	date := fs.String("date", "", "end date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	endDate, err := parseDate(*date)
	if err != nil {
		return err
	}

	session, err := a.login(ctx)
	if err != nil {
		return err
	}
	defer a.gate.Logout(session)

	if err := a.assignments.End(ctx, session, *employeeID, assignment.Kind(*kind), endDate); err != nil {
		return err
	}

	fmt.Printf("assignment for %s (%s) closed on %s\n", *employeeID, *kind, endDate.Format("2006-01-02"))
	return nil
}

func (a *app) current(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("current", flag.ExitOnError)
	employeeID := fs.String("employee", "", "employee id")
	kind := fs.String("kind", string(assignment.KindDivision), "assignment kind: division or job_title")
	if err := fs.Parse(args); err != nil {
		return err
	}

	record, err := a.assignments.GetCurrent(ctx, *employeeID, assignment.Kind(*kind))
	if err != nil {
		return err
	}
	if record == nil {
		fmt.Println("no current assignment")
		return nil
	}

	fmt.Printf("%s\t%s\tsince %s\n", record.Kind, record.TargetID, record.StartDate.Format("2006-01-02"))
	return nil
}

func (a *app) history(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	employeeID := fs.String("employee", "", "employee id")
	kind := fs.String("kind", string(assignment.KindDivision), "assignment kind: division or job_title")
	if err := fs.Parse(args); err != nil {
		return err
	}

	records, err := a.assignments.GetHistory(ctx, *employeeID, assignment.Kind(*kind))
	if err != nil {
		return err
	}

	for _, r := range records {
		end := "current"
		if r.EndDate != nil {
			end = r.EndDate.Format("2006-01-02")
		}
		fmt.Printf("%s\t%s\t%s .. %s\n", r.Kind, r.TargetID, r.StartDate.Format("2006-01-02"), end)
	}
	return nil
}

func (a *app) adjustSalaries(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("adjust-salaries", flag.ExitOnError)
	minSalary := fs.Int64("min", 0, "inclusive lower bound of the salary range")
	maxSalary := fs.Int64("max", 0, "inclusive upper bound of the salary range")
	percent := fs.Float64("percent", 0, "adjustment percentage, between -50 and 100")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session, err := a.login(ctx)
	if err != nil {
		return err
	}
	defer a.gate.Logout(session)

	result, err := a.payroll.ApplyPercentageToRange(ctx, session, *minSalary, *maxSalary, *percent)
	if err != nil {
		return err
	}

	fmt.Printf("adjusted %d employees: total %d -> %d (delta %+d)\n",
		result.Count, result.TotalOld, result.TotalNew, result.Delta)
	return nil
}

func (a *app) login(ctx context.Context) (*auth.Session, error) {
	username := os.Getenv("HRCTL_USERNAME")
	secret := os.Getenv("HRCTL_SECRET")
	if username == "" || secret == "" {
		return nil, fmt.Errorf("HRCTL_USERNAME and HRCTL_SECRET must be set")
	}
	return a.gate.Authenticate(ctx, username, secret)
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("date is required (YYYY-MM-DD)")
	}
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return d, nil
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}
